package queue

import (
	"fmt"
	"log"
	"sync"
)

// TaskDispatchTopic carries claimed task ids from the scheduler to the
// delivery executor.
const TaskDispatchTopic = "task_dispatch"

// Queue interface
type Queue interface {
	Publish(topic string, taskID string) error
	Subscribe(topic string, handler func(taskID string) error) error
	Close() error
}

// InMemoryQueue is an in-process queue used in tests and single-binary dev
// runs. Handlers run on their own goroutine; redelivery on error is the
// handler's problem (the DB store is the source of truth, a dropped message
// just means the poller picks the task up again).
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(taskID string) error
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(taskID string) error),
	}
}

// Publish sends a task id to all subscribers
func (q *InMemoryQueue) Publish(topic string, taskID string) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		h := handler
		go func() {
			if err := h(taskID); err != nil {
				log.Printf("Task %s handler error: %v", taskID, err)
			}
		}()
	}

	return nil
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(taskID string) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

func (q *InMemoryQueue) Close() error { return nil }
