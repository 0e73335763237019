package service

import (
	"context"

	"techshop/internal/model"

	"github.com/google/uuid"
)

// OrderService defines order creation and read operations.
type OrderService interface {
	// Create validates the cart, resolves or provisions the purchaser,
	// fixes totals and reward points, and persists the order as pending.
	Create(ctx context.Context, req *model.CreateOrderRequest, authUserID *uuid.UUID) (*model.OrderSummary, error)

	// GetByID retrieves an order.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// StatusByCode returns the unauthenticated polling projection.
	StatusByCode(ctx context.Context, code string) (*model.OrderStatusView, error)

	// AttachPaymentProof stores the proof-of-transfer image reference.
	AttachPaymentProof(ctx context.Context, orderID uuid.UUID, imageKey string) error

	// ConfirmPayment marks a COD or bank-transfer order as paid and
	// confirms it if still pending (admin).
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, verifier string) (*model.Order, error)
}

// StatusService applies status transitions with their ledger side effects.
type StatusService interface {
	Transition(ctx context.Context, orderID uuid.UUID, target model.OrderStatus) (*model.Order, error)
}

// CancellationService is the purchaser's time-boxed cancellation entry.
type CancellationService interface {
	Cancel(ctx context.Context, orderID, callerID uuid.UUID, reason string) (*model.Order, error)
}
