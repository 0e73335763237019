package repository

import (
	"context"
	"testing"
	"time"

	"techshop/internal/database"
	"techshop/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL testcontainer with the application schema
// applied and returns a connection pool.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, database.Migrate(ctx, pool, zerolog.Nop()))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// seedVariant inserts a product with one variant.
func seedVariant(t *testing.T, pool *pgxpool.Pool, productID, variantID, productName, variantName string, price int64, stock, sold int) {
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO products (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, productID, productName)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO product_variants (id, product_id, name, price, stock, sold)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, variantID, productID, variantName, price, stock, sold)
	require.NoError(t, err)
}

// seedUser inserts a purchaser account with a points balance.
func seedUser(t *testing.T, pool *pgxpool.Pool, email string, points int64) uuid.UUID {
	ctx := context.Background()

	id := uuid.New()
	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, points)
		VALUES ($1, $2, $3, 'x', $4)
	`, id, "Test User", email, points)
	require.NoError(t, err)
	return id
}

// seedVoucher inserts a voucher valid for one hour around now.
func seedVoucher(t *testing.T, pool *pgxpool.Pool, code string, percent, maxUses, used int, pointsRedeemable bool) {
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := pool.Exec(ctx, `
		INSERT INTO vouchers (code, percent, max_uses, used, valid_from, valid_until, points_redeemable)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, code, percent, maxUses, used, now.Add(-time.Hour), now.Add(time.Hour), pointsRedeemable)
	require.NoError(t, err)
}

// testOrder builds a persistable two-line order owned by userID (nil for a
// guest order).
func testOrder(userID *uuid.UUID) *model.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	orderID := uuid.New()
	return &model.Order{
		ID:     orderID,
		Code:   "ORD-TEST-" + orderID.String()[:8],
		UserID: userID,
		GuestContact: &model.GuestContact{
			Name:  "Guest",
			Email: "guest@example.com",
			Phone: "0900000000",
		},
		Items: []model.OrderItem{
			{ID: uuid.New(), OrderID: orderID, ProductID: "P001", VariantID: "V1", Name: "Phone Black", UnitPrice: 250_000, Quantity: 2},
			{ID: uuid.New(), OrderID: orderID, ProductID: "P002", VariantID: "V1", Name: "Charger", UnitPrice: 500_000, Quantity: 1},
		},
		ShippingAddress: model.ShippingAddress{
			FullName: "Nguyen Van A",
			Phone:    "0900000000",
			Line1:    "1 Tran Hung Dao",
			City:     "Ho Chi Minh City",
		},
		PaymentMethod: model.PaymentCOD,
		SubTotal:      1_000_000,
		Total:         1_000_000,
		Loyalty:       model.LoyaltyPointsRecord{PointsEarned: 100},
		Status:        model.StatusPending,
		PaymentStatus: "unpaid",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
