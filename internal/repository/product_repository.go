package repository

import (
	"context"
	"errors"
	"fmt"

	"techshop/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

// GetVariant retrieves one variant with its product name.
func (r *productRepository) GetVariant(ctx context.Context, productID, variantID string) (*VariantRecord, error) {
	query := `
		SELECT p.name, v.id, v.product_id, v.name, v.image, v.price, v.stock, v.sold
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.product_id = $1 AND v.id = $2
	`

	var rec VariantRecord
	err := r.pool.QueryRow(ctx, query, productID, variantID).Scan(
		&rec.ProductName,
		&rec.Variant.ID,
		&rec.Variant.ProductID,
		&rec.Variant.Name,
		&rec.Variant.Image,
		&rec.Variant.Price,
		&rec.Variant.Stock,
		&rec.Variant.Sold,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().
			Err(err).
			Str("product_id", productID).
			Str("variant_id", variantID).
			Msg("failed to query variant")
		return nil, fmt.Errorf("failed to query variant: %w", err)
	}

	return &rec, nil
}

// CommitStock decrements stock and increments sold in one conditional
// update. The WHERE clause is the only stock guard; no lock is held across
// line items.
func (r *productRepository) CommitStock(ctx context.Context, db Querier, productID, variantID string, qty int) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE product_variants
		SET stock = stock - $1, sold = sold + $1
		WHERE product_id = $2 AND id = $3 AND stock >= $1
	`, qty, productID, variantID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("product_id", productID).
			Str("variant_id", variantID).
			Int("qty", qty).
			Msg("failed to commit stock")
		return false, fmt.Errorf("failed to commit stock: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ReleaseStock increments stock and decrements sold, flooring sold at zero.
func (r *productRepository) ReleaseStock(ctx context.Context, db Querier, productID, variantID string, qty int) error {
	tag, err := db.Exec(ctx, `
		UPDATE product_variants
		SET stock = stock + $1, sold = GREATEST(sold - $1, 0)
		WHERE product_id = $2 AND id = $3
	`, qty, productID, variantID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("product_id", productID).
			Str("variant_id", variantID).
			Int("qty", qty).
			Msg("failed to release stock")
		return fmt.Errorf("failed to release stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrProductNotFound
	}

	return nil
}
