package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/caremesh/telehealth/internal/shared/config"
	"github.com/caremesh/telehealth/internal/shared/errors"
)

// Provider delivers notifications
type Provider interface {
	Send(ctx context.Context, n *Notification) error
}

// KafkaProvider publishes notifications to a Kafka topic, keyed by
// recipient so one recipient's messages stay ordered
type KafkaProvider struct {
	writer *kafka.Writer
}

// NewKafkaProvider creates a provider writing to the configured topic
func NewKafkaProvider(cfg config.KafkaConfig) *KafkaProvider {
	return &KafkaProvider{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		}),
	}
}

// Send publishes the notification
func (p *KafkaProvider) Send(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}

	key := n.RecipientID
	if key == "" {
		key = "role:" + n.RecipientRole
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		return errors.Wrap(err, "failed to publish notification")
	}

	return nil
}

// Close closes the underlying writer
func (p *KafkaProvider) Close() error {
	return p.writer.Close()
}

// ConsoleProvider prints notifications to stdout (for development)
type ConsoleProvider struct{}

// Send prints the notification
func (p *ConsoleProvider) Send(ctx context.Context, n *Notification) error {
	to := n.RecipientID
	if to == "" {
		to = "role:" + n.RecipientRole
	}
	fmt.Printf("[NOTIFICATION] To: %s, Priority: %s, Subject: %s\n  %s\n", to, n.Priority, n.Subject, n.Body)
	return nil
}

// MockProvider records notifications for tests
type MockProvider struct {
	mu         sync.RWMutex
	sent       []*Notification
	failOnSend bool
}

// NewMockProvider creates a new mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Send records the notification
func (p *MockProvider) Send(ctx context.Context, n *Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failOnSend {
		return fmt.Errorf("mock send failure")
	}

	p.sent = append(p.sent, n)
	return nil
}

// SetFailOnSend sets whether Send should fail
func (p *MockProvider) SetFailOnSend(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOnSend = fail
}

// Sent returns all recorded notifications
func (p *MockProvider) Sent() []*Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*Notification, len(p.sent))
	copy(result, p.sent)
	return result
}

var (
	_ Provider = (*KafkaProvider)(nil)
	_ Provider = (*ConsoleProvider)(nil)
	_ Provider = (*MockProvider)(nil)
)
