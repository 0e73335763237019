package repository

import (
	"context"
	"time"

	"techshop/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx. Write
// operations take a Querier so the same repository code runs inside a
// transaction (atomic order creation) or directly against the pool
// (sequential fallback).
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// SupportsTransactions probes whether the store accepts transactions.
	SupportsTransactions(ctx context.Context) bool

	// Create inserts a new order with its items and the initial status
	// history entry.
	Create(ctx context.Context, db Querier, order *model.Order) error

	// GetByID retrieves an order with items and status history.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetByCode retrieves an order by its human-readable code.
	GetByCode(ctx context.Context, code string) (*model.Order, error)

	// AppendStatus updates the order status and appends a history entry.
	AppendStatus(ctx context.Context, db Querier, orderID uuid.UUID, status model.OrderStatus, at time.Time) error

	// MarkPaid flips the payment flags. It never touches status.
	MarkPaid(ctx context.Context, db Querier, orderID uuid.UUID, paidAt time.Time, paymentStatus string) error

	// SetCancellation records the purchaser's reason and timestamp.
	SetCancellation(ctx context.Context, db Querier, orderID uuid.UUID, reason string, at time.Time) error

	// SetPaymentProof attaches or updates the proof-of-transfer record.
	SetPaymentProof(ctx context.Context, db Querier, orderID uuid.UUID, proof *model.PaymentProof) error
}

// VariantRecord is a variant joined with its product's display name, read
// when snapshotting cart lines.
type VariantRecord struct {
	ProductName string
	Variant     model.Variant
}

// ProductRepository defines product and stock data access. Stock counters
// are only moved through the conditional single-row updates below; the
// database enforces the non-negative floor.
type ProductRepository interface {
	// GetVariant retrieves one variant with its product name.
	GetVariant(ctx context.Context, productID, variantID string) (*VariantRecord, error)

	// CommitStock decrements stock and increments sold in one conditional
	// update. Returns false without mutating when stock < qty.
	CommitStock(ctx context.Context, db Querier, productID, variantID string, qty int) (bool, error)

	// ReleaseStock increments stock and decrements sold, flooring sold at
	// zero.
	ReleaseStock(ctx context.Context, db Querier, productID, variantID string, qty int) error
}

// UserRepository defines purchaser account data access.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// Create inserts a new account (used for guest auto-provisioning).
	Create(ctx context.Context, db Querier, user *model.User) error

	// DebitPoints conditionally subtracts points. Returns false without
	// mutating when the balance is insufficient.
	DebitPoints(ctx context.Context, db Querier, userID uuid.UUID, amount int64) (bool, error)

	// CreditPoints adds points and returns the new balance.
	CreditPoints(ctx context.Context, db Querier, userID uuid.UUID, amount int64) (int64, error)

	// ClearCart removes all of the user's cart lines.
	ClearCart(ctx context.Context, db Querier, userID uuid.UUID) error
}

// VoucherRepository defines voucher data access.
type VoucherRepository interface {
	GetByCode(ctx context.Context, code string) (*model.Voucher, error)

	// HasRedeemed reports whether the user already redeemed the voucher.
	HasRedeemed(ctx context.Context, code string, userID uuid.UUID) (bool, error)

	// Redeem increments the use count if the cap and validity window allow
	// it, recording the redeeming user when one exists. Returns false
	// without mutating when the voucher is exhausted or outside its window.
	Redeem(ctx context.Context, db Querier, code string, userID *uuid.UUID, now time.Time) (bool, error)
}
