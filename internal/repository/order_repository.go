package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"techshop/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// SupportsTransactions probes the store with a begin/rollback round trip.
func (r *orderRepository) SupportsTransactions(ctx context.Context) bool {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("store rejected transaction probe")
		return false
	}
	if err := tx.Rollback(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("transaction probe rollback failed")
		return false
	}
	return true
}

// Create inserts a new order, its line items and the initial status history
// entry.
func (r *orderRepository) Create(ctx context.Context, db Querier, order *model.Order) error {
	guestContact, err := marshalNullable(order.GuestContact)
	if err != nil {
		return fmt.Errorf("failed to encode guest contact: %w", err)
	}
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}
	proof, err := marshalNullable(order.PaymentProof)
	if err != nil {
		return fmt.Errorf("failed to encode payment proof: %w", err)
	}

	query := `
		INSERT INTO orders (
			id, code, user_id, guest_contact, shipping_address, payment_method,
			sub_total, shipping_fee, tax, discount_code, discount_percent, discount_amount, total,
			points_used, points_earned, status, is_paid, paid_at, payment_status, payment_proof,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4::jsonb, $5::jsonb, $6,
			$7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20::jsonb,
			$21, $22
		)
	`

	_, err = db.Exec(ctx, query,
		order.ID, order.Code, order.UserID, guestContact, string(address), order.PaymentMethod,
		order.SubTotal, order.ShippingFee, order.Tax,
		order.Discount.Code, order.Discount.Percent, order.Discount.Amount, order.Total,
		order.Loyalty.PointsUsed, order.Loyalty.PointsEarned,
		order.Status, order.IsPaid, order.PaidAt, order.PaymentStatus, proof,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_code", order.Code).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, variant_id, name, image, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	batch := &pgx.Batch{}
	for _, item := range order.Items {
		batch.Queue(itemQuery,
			item.ID, item.OrderID, item.ProductID, item.VariantID,
			item.Name, item.Image, item.UnitPrice, item.Quantity)
	}
	batch.Queue(
		`INSERT INTO order_status_history (order_id, status, changed_at) VALUES ($1, $2, $3)`,
		order.ID, order.Status, order.CreatedAt)

	results := db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_code", order.Code).
				Msg("failed to create order items")
			return fmt.Errorf("failed to create order items: %w", err)
		}
	}

	r.logger.Debug().
		Str("order_code", order.Code).
		Int("item_count", len(order.Items)).
		Msg("order created")

	return nil
}

const orderColumns = `
	id, code, user_id, guest_contact, shipping_address, payment_method,
	sub_total, shipping_fee, tax, discount_code, discount_percent, discount_amount, total,
	points_used, points_earned, status, is_paid, paid_at, payment_status, payment_proof,
	cancel_reason, cancelled_at, created_at, updated_at
`

// GetByID retrieves an order with items and status history.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return r.scanOrder(ctx, row, id.String())
}

// GetByCode retrieves an order by its human-readable code.
func (r *orderRepository) GetByCode(ctx context.Context, code string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE code = $1`, code)
	return r.scanOrder(ctx, row, code)
}

func (r *orderRepository) scanOrder(ctx context.Context, row pgx.Row, ref string) (*model.Order, error) {
	var (
		order        model.Order
		guestContact []byte
		address      []byte
		proof        []byte
	)

	err := row.Scan(
		&order.ID, &order.Code, &order.UserID, &guestContact, &address, &order.PaymentMethod,
		&order.SubTotal, &order.ShippingFee, &order.Tax,
		&order.Discount.Code, &order.Discount.Percent, &order.Discount.Amount, &order.Total,
		&order.Loyalty.PointsUsed, &order.Loyalty.PointsEarned,
		&order.Status, &order.IsPaid, &order.PaidAt, &order.PaymentStatus, &proof,
		&order.CancelReason, &order.CancelledAt, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_ref", ref).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_ref", ref).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	if len(guestContact) > 0 {
		order.GuestContact = &model.GuestContact{}
		if err := json.Unmarshal(guestContact, order.GuestContact); err != nil {
			return nil, fmt.Errorf("failed to decode guest contact: %w", err)
		}
	}
	if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}
	if len(proof) > 0 {
		order.PaymentProof = &model.PaymentProof{}
		if err := json.Unmarshal(proof, order.PaymentProof); err != nil {
			return nil, fmt.Errorf("failed to decode payment proof: %w", err)
		}
	}

	if order.Items, err = r.loadItems(ctx, order.ID); err != nil {
		return nil, err
	}
	if order.StatusHistory, err = r.loadHistory(ctx, order.ID); err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, name, image, unit_price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id, variant_id
	`, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query order items")
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariantID,
			&item.Name, &item.Image, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return items, nil
}

func (r *orderRepository) loadHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusChange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, changed_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query status history")
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var history []model.StatusChange
	for rows.Next() {
		var change model.StatusChange
		if err := rows.Scan(&change.Status, &change.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		history = append(history, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status history: %w", err)
	}
	return history, nil
}

// AppendStatus updates the order status and appends a history entry. The
// two statements must land together, so when the caller hands us the bare
// pool they run inside a repository-owned transaction.
func (r *orderRepository) AppendStatus(ctx context.Context, db Querier, orderID uuid.UUID, status model.OrderStatus, at time.Time) error {
	if pool, ok := db.(*pgxpool.Pool); ok {
		tx, err := pool.Begin(ctx)
		if err != nil {
			r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to begin status transaction")
			return fmt.Errorf("failed to begin status transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := r.appendStatus(ctx, tx, orderID, status, at); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to commit status transaction")
			return fmt.Errorf("failed to commit status transaction: %w", err)
		}
		return nil
	}
	return r.appendStatus(ctx, db, orderID, status, at)
}

func (r *orderRepository) appendStatus(ctx context.Context, db Querier, orderID uuid.UUID, status model.OrderStatus, at time.Time) error {
	tag, err := db.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		status, at, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to update order status")
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	_, err = db.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, changed_at) VALUES ($1, $2, $3)`,
		orderID, status, at)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to append status history")
		return fmt.Errorf("failed to append status history: %w", err)
	}

	return nil
}

// MarkPaid flips the payment flags.
func (r *orderRepository) MarkPaid(ctx context.Context, db Querier, orderID uuid.UUID, paidAt time.Time, paymentStatus string) error {
	tag, err := db.Exec(ctx, `
		UPDATE orders
		SET is_paid = TRUE, paid_at = $1, payment_status = $2, updated_at = $1
		WHERE id = $3
	`, paidAt, paymentStatus, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to mark order paid")
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

// SetCancellation records the purchaser's reason and timestamp.
func (r *orderRepository) SetCancellation(ctx context.Context, db Querier, orderID uuid.UUID, reason string, at time.Time) error {
	_, err := db.Exec(ctx,
		`UPDATE orders SET cancel_reason = $1, cancelled_at = $2, updated_at = $2 WHERE id = $3`,
		reason, at, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to record cancellation")
		return fmt.Errorf("failed to record cancellation: %w", err)
	}
	return nil
}

// SetPaymentProof attaches or updates the proof-of-transfer record.
func (r *orderRepository) SetPaymentProof(ctx context.Context, db Querier, orderID uuid.UUID, proof *model.PaymentProof) error {
	encoded, err := marshalNullable(proof)
	if err != nil {
		return fmt.Errorf("failed to encode payment proof: %w", err)
	}

	_, err = db.Exec(ctx,
		`UPDATE orders SET payment_proof = $1::jsonb, updated_at = NOW() WHERE id = $2`,
		encoded, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to set payment proof")
		return fmt.Errorf("failed to set payment proof: %w", err)
	}
	return nil
}

// marshalNullable encodes v to JSON text, returning nil for a nil pointer so
// the column stays NULL.
func marshalNullable(v any) (*string, error) {
	switch t := v.(type) {
	case *model.GuestContact:
		if t == nil {
			return nil, nil
		}
	case *model.PaymentProof:
		if t == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}
