// Package events publishes order lifecycle events to NATS for downstream
// consumers (notifications, fulfillment dashboards).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ostrem/kasse/internal/domain"
)

// Subjects for order lifecycle events.
const (
	SubjectOrderCreated       = "kasse.orders.created"
	SubjectOrderStatusChanged = "kasse.orders.status_changed"
)

// OrderCreatedEvent is the payload published on order creation.
type OrderCreatedEvent struct {
	OrderID    string    `json:"order_id"`
	TotalCents int64     `json:"total_cents"`
	ItemCount  int       `json:"item_count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderStatusChangedEvent is the payload published on a status transition.
type OrderStatusChangedEvent struct {
	OrderID    string    `json:"order_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher implements domain.Notifier over a NATS connection.
type Publisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// Compile-time check that Publisher implements domain.Notifier.
var _ domain.Notifier = (*Publisher)(nil)

// NewPublisher connects to NATS. The connection reconnects indefinitely;
// event delivery is best-effort and callers treat failures as non-fatal.
func NewPublisher(url string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		conn:   conn,
		logger: logger.With().Str("component", "events").Logger(),
	}, nil
}

// Close drains the connection so queued events are flushed.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn().Err(err).Msg("failed to drain nats connection")
	}
}

func (p *Publisher) publish(subject string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, payload)
}

// OrderCreated publishes an order creation event.
func (p *Publisher) OrderCreated(ctx context.Context, order *domain.Order) error {
	return p.publish(SubjectOrderCreated, OrderCreatedEvent{
		OrderID:    order.ID.String(),
		TotalCents: order.TotalCents,
		ItemCount:  len(order.Items),
		OccurredAt: time.Now().UTC(),
	})
}

// OrderStatusChanged publishes a status transition event.
func (p *Publisher) OrderStatusChanged(ctx context.Context, order *domain.Order, previous domain.OrderStatus) error {
	return p.publish(SubjectOrderStatusChanged, OrderStatusChangedEvent{
		OrderID:    order.ID.String(),
		From:       string(previous),
		To:         string(order.Status),
		OccurredAt: time.Now().UTC(),
	})
}
