// Package notify is the outbound messaging boundary. Every method is
// fire-and-forget: failures are logged and swallowed so a notification can
// never fail the operation that produced it.
package notify

import (
	"context"
	"time"

	"techshop/internal/model"
	"techshop/internal/outbox"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Event kinds carried on the notification topic.
const (
	KindOrderCreated     = "order.created"
	KindStatusChanged    = "order.status_changed"
	KindPaymentConfirmed = "order.payment_confirmed"
	KindOrderCancelled   = "order.cancelled"
	KindWelcome          = "account.welcome"
)

// Event is the payload published for notifications and emails.
type Event struct {
	Kind      string            `json:"kind"`
	OrderCode string            `json:"orderCode,omitempty"`
	Email     string            `json:"email,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	At        time.Time         `json:"at"`
}

// Dispatcher enqueues outbound notifications and emails.
type Dispatcher interface {
	OrderCreated(ctx context.Context, order *model.Order)
	StatusChanged(ctx context.Context, order *model.Order, from, to model.OrderStatus)
	PaymentConfirmed(ctx context.Context, order *model.Order)
	OrderCancelled(ctx context.Context, order *model.Order, reason string)
	Welcome(ctx context.Context, email string)
}

type outboxDispatcher struct {
	store              *outbox.Store
	pool               *pgxpool.Pool
	notificationsTopic string
	emailsTopic        string
	logger             zerolog.Logger
}

// NewDispatcher creates the outbox-backed dispatcher. Events are enqueued
// against the pool, outside any business transaction, after the parent
// operation has succeeded.
func NewDispatcher(store *outbox.Store, pool *pgxpool.Pool, notificationsTopic, emailsTopic string, logger zerolog.Logger) Dispatcher {
	return &outboxDispatcher{
		store:              store,
		pool:               pool,
		notificationsTopic: notificationsTopic,
		emailsTopic:        emailsTopic,
		logger:             logger.With().Str("component", "notify").Logger(),
	}
}

func (d *outboxDispatcher) enqueue(ctx context.Context, topic, key string, ev Event) {
	ev.At = time.Now().UTC()
	if err := d.store.Insert(ctx, d.pool, topic, key, ev); err != nil {
		d.logger.Error().
			Err(err).
			Str("kind", ev.Kind).
			Str("key", key).
			Msg("failed to enqueue event, dropping")
	}
}

func (d *outboxDispatcher) contactEmail(order *model.Order) string {
	if order.GuestContact != nil {
		return order.GuestContact.Email
	}
	return ""
}

func (d *outboxDispatcher) OrderCreated(ctx context.Context, order *model.Order) {
	ev := Event{
		Kind:      KindOrderCreated,
		OrderCode: order.Code,
		Data: map[string]string{
			"status": string(order.Status),
		},
	}
	d.enqueue(ctx, d.notificationsTopic, order.Code, ev)

	if email := d.contactEmail(order); email != "" {
		ev.Email = email
		ev.Subject = "Your order " + order.Code + " has been received"
		d.enqueue(ctx, d.emailsTopic, order.Code, ev)
	}
}

func (d *outboxDispatcher) StatusChanged(ctx context.Context, order *model.Order, from, to model.OrderStatus) {
	ev := Event{
		Kind:      KindStatusChanged,
		OrderCode: order.Code,
		Data: map[string]string{
			"from": string(from),
			"to":   string(to),
		},
	}
	d.enqueue(ctx, d.notificationsTopic, order.Code, ev)

	if email := d.contactEmail(order); email != "" {
		ev.Email = email
		ev.Subject = "Order " + order.Code + " is now " + string(to)
		d.enqueue(ctx, d.emailsTopic, order.Code, ev)
	}
}

func (d *outboxDispatcher) PaymentConfirmed(ctx context.Context, order *model.Order) {
	ev := Event{
		Kind:      KindPaymentConfirmed,
		OrderCode: order.Code,
	}
	d.enqueue(ctx, d.notificationsTopic, order.Code, ev)
}

func (d *outboxDispatcher) OrderCancelled(ctx context.Context, order *model.Order, reason string) {
	ev := Event{
		Kind:      KindOrderCancelled,
		OrderCode: order.Code,
		Data: map[string]string{
			"reason": reason,
		},
	}
	d.enqueue(ctx, d.notificationsTopic, order.Code, ev)
}

func (d *outboxDispatcher) Welcome(ctx context.Context, email string) {
	if email == "" {
		return
	}
	d.enqueue(ctx, d.emailsTopic, email, Event{
		Kind:    KindWelcome,
		Email:   email,
		Subject: "Welcome to the shop",
	})
}

// Noop is a dispatcher that drops everything. Used in tests.
type Noop struct{}

func (Noop) OrderCreated(context.Context, *model.Order)                              {}
func (Noop) StatusChanged(context.Context, *model.Order, model.OrderStatus, model.OrderStatus) {}
func (Noop) PaymentConfirmed(context.Context, *model.Order)                          {}
func (Noop) OrderCancelled(context.Context, *model.Order, string)                    {}
func (Noop) Welcome(context.Context, string)                                         {}
