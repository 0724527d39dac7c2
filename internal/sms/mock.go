// internal/sms/mock.go
package sms

import (
	"context"
	"fmt"
	"math/rand"
)

// MockSender simulates the provider with 90% success, for local dev.
type MockSender struct{}

func (MockSender) Send(ctx context.Context, from, to, body string) (string, error) {
	if rand.Float64() < 0.9 {
		return fmt.Sprintf("mock-%d", rand.Int63()), nil
	}
	return "", fmt.Errorf("mock sending failed")
}

var _ Sender = MockSender{}
