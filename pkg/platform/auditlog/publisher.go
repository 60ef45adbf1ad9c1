package auditlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StorePublisher emits events with synchronous, fail-closed semantics: the
// caller blocks until the write succeeds, and a failed write must fail the
// calling operation. Used for compliance-category events.
type StorePublisher struct {
	store  Store
	logger *slog.Logger
}

// NewStorePublisher creates a store-backed publisher.
func NewStorePublisher(store Store, logger *slog.Logger) *StorePublisher {
	return &StorePublisher{store: store, logger: logger}
}

// Emit synchronously writes an event to the trail store.
func (p *StorePublisher) Emit(ctx context.Context, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("trail event requires Action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = TrailEvent(event.Action).Category()
	}
	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "trail event persistence failed",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
		return fmt.Errorf("trail event persistence failed: %w", err)
	}
	return nil
}

// Fanout emits to every publisher in order and returns the first error.
// The store publisher should come first so fail-closed semantics hold even
// when a best-effort sink (Kafka) follows it.
type Fanout []Publisher

func (f Fanout) Emit(ctx context.Context, event Event) error {
	for _, p := range f {
		if err := p.Emit(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
