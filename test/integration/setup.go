package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"techshop/internal/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container with the application
// schema applied and a connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	if err := database.Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedCatalog inserts a small product catalogue with stocked variants.
func SeedCatalog(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	products := []struct {
		id   string
		name string
	}{
		{"P001", "Phone"},
		{"P002", "Charger"},
	}
	for _, p := range products {
		_, err := pool.Exec(ctx,
			"INSERT INTO products (id, name) VALUES ($1, $2)",
			p.id, p.name,
		)
		if err != nil {
			t.Fatalf("failed to seed product %s: %v", p.id, err)
		}
	}

	variants := []struct {
		id        string
		productID string
		name      string
		price     int64
		stock     int
	}{
		{"V1", "P001", "Black", 250_000, 10},
		{"V2", "P001", "White", 250_000, 1},
		{"V1", "P002", "Standard", 500_000, 20},
	}
	for _, v := range variants {
		_, err := pool.Exec(ctx,
			"INSERT INTO product_variants (id, product_id, name, price, stock) VALUES ($1, $2, $3, $4, $5)",
			v.id, v.productID, v.name, v.price, v.stock,
		)
		if err != nil {
			t.Fatalf("failed to seed variant %s/%s: %v", v.productID, v.id, err)
		}
	}
}

// SeedUser inserts a registered purchaser with a points balance.
func SeedUser(t *testing.T, pool *pgxpool.Pool, email string, points int64) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		"INSERT INTO users (id, name, email, password_hash, points) VALUES ($1, 'Test User', $2, 'x', $3)",
		id, email, points,
	)
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", email, err)
	}
	return id
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{
		"outbox",
		"order_status_history",
		"order_items",
		"orders",
		"voucher_redemptions",
		"vouchers",
		"cart_items",
		"product_variants",
		"products",
		"users",
	}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
