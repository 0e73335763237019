package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"techshop/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// voucherRepository implements the VoucherRepository interface using PostgreSQL.
type voucherRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewVoucherRepository creates a new PostgreSQL-backed voucher repository.
func NewVoucherRepository(pool *pgxpool.Pool, logger zerolog.Logger) VoucherRepository {
	return &voucherRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "voucher").Logger(),
	}
}

// GetByCode retrieves a voucher by its code.
func (r *voucherRepository) GetByCode(ctx context.Context, code string) (*model.Voucher, error) {
	var v model.Voucher
	err := r.pool.QueryRow(ctx, `
		SELECT code, percent, max_uses, used, valid_from, valid_until, points_redeemable
		FROM vouchers
		WHERE code = $1
	`, code).Scan(&v.Code, &v.Percent, &v.MaxUses, &v.Used, &v.ValidFrom, &v.ValidUntil, &v.PointsRedeemable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("code", code).Msg("failed to query voucher")
		return nil, fmt.Errorf("failed to query voucher: %w", err)
	}
	return &v, nil
}

// HasRedeemed reports whether the user already redeemed the voucher.
func (r *voucherRepository) HasRedeemed(ctx context.Context, code string, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM voucher_redemptions WHERE voucher_code = $1 AND user_id = $2
		)
	`, code, userID).Scan(&exists)
	if err != nil {
		r.logger.Error().Err(err).Str("code", code).Msg("failed to query voucher redemption")
		return false, fmt.Errorf("failed to query voucher redemption: %w", err)
	}
	return exists, nil
}

// Redeem increments the use count if the cap and validity window allow it.
func (r *voucherRepository) Redeem(ctx context.Context, db Querier, code string, userID *uuid.UUID, now time.Time) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE vouchers
		SET used = used + 1
		WHERE code = $1 AND used < max_uses AND valid_from <= $2 AND valid_until >= $2
	`, code, now)
	if err != nil {
		r.logger.Error().Err(err).Str("code", code).Msg("failed to redeem voucher")
		return false, fmt.Errorf("failed to redeem voucher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if userID != nil {
		_, err = db.Exec(ctx, `
			INSERT INTO voucher_redemptions (voucher_code, user_id, redeemed_at)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, code, *userID, now)
		if err != nil {
			r.logger.Error().Err(err).Str("code", code).Msg("failed to record voucher redemption")
			return false, fmt.Errorf("failed to record voucher redemption: %w", err)
		}
	}

	return true, nil
}
