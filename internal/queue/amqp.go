package queue

import (
	"encoding/json"
	"log"

	"github.com/streadway/amqp"
)

type dispatchJob struct {
	TaskID string `json:"task_id"`
}

// AmqpQueue is the broker-backed Queue used in production: durable queues,
// manual acks, nack-requeue bounded by a retry header.
type AmqpQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAmqpQueue(url string) (*AmqpQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &AmqpQueue{conn: conn, ch: ch}, nil
}

func (q *AmqpQueue) declare(topic string) (amqp.Queue, error) {
	return q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (q *AmqpQueue) Publish(topic string, taskID string) error {
	declared, err := q.declare(topic)
	if err != nil {
		return err
	}

	body, err := json.Marshal(dispatchJob{TaskID: taskID})
	if err != nil {
		return err
	}

	return q.ch.Publish(
		"",
		declared.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

const maxDeliveryRetries = 3

// retryCount reads the bounded redelivery counter from a delivery's headers.
// AMQP table decoding may hand the value back in either integer width.
func retryCount(headers amqp.Table) int32 {
	if headers == nil {
		return 0
	}
	switch v := headers["x-retry-count"].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	}
	return 0
}

func (q *AmqpQueue) republish(queueName string, body []byte, retries int32) error {
	return q.ch.Publish(
		"",
		queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{"x-retry-count": retries},
			Body:         body,
		},
	)
}

// Subscribe consumes the topic until the channel closes. A handler error
// republishes the message with an incremented retry counter (a plain
// nack-requeue would keep the original headers and loop forever); after 3
// retries the message is dropped and the DB poller re-dispatches the task if
// it is still unsent.
func (q *AmqpQueue) Subscribe(topic string, handler func(taskID string) error) error {
	declared, err := q.declare(topic)
	if err != nil {
		return err
	}

	msgs, err := q.ch.Consume(
		declared.Name,
		"",
		false, // autoAck off for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			var job dispatchJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				d.Ack(false)
				continue
			}

			if err := handler(job.TaskID); err != nil {
				if retries := retryCount(d.Headers); retries < maxDeliveryRetries {
					if pubErr := q.republish(declared.Name, d.Body, retries+1); pubErr != nil {
						log.Println("⚠️ Failed to republish task", job.TaskID, ":", pubErr)
					}
				} else {
					log.Println("⚠️ Dropping task", job.TaskID, "after", retries, "retries:", err)
				}
			}

			d.Ack(false)
		}
	}()

	return nil
}

func (q *AmqpQueue) Close() error {
	q.ch.Close()
	return q.conn.Close()
}

var _ Queue = (*AmqpQueue)(nil)
var _ Queue = (*InMemoryQueue)(nil)
