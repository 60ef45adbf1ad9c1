// Package kafka mirrors trail events onto a Kafka topic for downstream
// compliance tooling (SIEM, long-retention archive). Delivery is best-effort:
// the store publisher remains the fail-closed record, so a broker outage
// never blocks an issuance.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"certo/pkg/platform/auditlog"
)

// Publisher produces trail events to a Kafka topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and ensures the topic exists.
func New(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 3, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
	}
	// Already-exists is fine: another replica won the race.
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		logger.Warn("topic creation returned error, continuing", "topic", topic, "error", resp.Err)
	}

	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// payload is the JSON structure published to the topic.
type payload struct {
	Category   string `json:"category"`
	OccurredAt string `json:"occurred_at"`
	TenantID   string `json:"tenant_id"`
	OperatorID string `json:"operator_id,omitempty"`
	Subject    string `json:"subject"`
	Action     string `json:"action"`
	Reason     string `json:"reason,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	ClientIP   string `json:"client_ip,omitempty"`
	Client     string `json:"client,omitempty"`
}

// Emit produces one event, keyed by tenant so per-tenant ordering holds.
func (p *Publisher) Emit(ctx context.Context, event auditlog.Event) error {
	body := payload{
		Category:   string(event.Category),
		OccurredAt: event.Timestamp.Format(time.RFC3339Nano),
		TenantID:   event.TenantID.String(),
		Subject:    event.Subject,
		Action:     event.Action,
		Reason:     event.Reason,
		RequestID:  event.RequestID,
		ClientIP:   event.ClientIP,
		Client:     event.Client,
	}
	if !event.OperatorID.IsZero() {
		body.OperatorID = event.OperatorID.String()
	}
	value, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal trail event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.TenantID.String()),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.ErrorContext(ctx, "trail event kafka produce failed",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes pending records and shuts down the client.
func (p *Publisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("kafka flush on close failed", "error", err)
	}
	p.client.Close()
	return nil
}
