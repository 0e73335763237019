package repository

import (
	"context"
	"errors"
	"fmt"

	"techshop/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// userRepository implements the UserRepository interface using PostgreSQL.
type userRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(pool *pgxpool.Pool, logger zerolog.Logger) UserRepository {
	return &userRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "user").Logger(),
	}
}

const userColumns = `id, name, email, password_hash, points, created_at`

// GetByID retrieves an account by id.
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves an account by email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var user model.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Points, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Msg("failed to query user")
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// Create inserts a new account.
func (r *userRepository) Create(ctx context.Context, db Querier, user *model.User) error {
	_, err := db.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Points, user.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("email", user.Email).Msg("failed to create user")
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug().Str("user_id", user.ID.String()).Msg("user created")
	return nil
}

// DebitPoints conditionally subtracts points. The WHERE clause fails the
// update closed when the balance is insufficient.
func (r *userRepository) DebitPoints(ctx context.Context, db Querier, userID uuid.UUID, amount int64) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE users SET points = points - $1 WHERE id = $2 AND points >= $1
	`, amount, userID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("user_id", userID.String()).
			Int64("amount", amount).
			Msg("failed to debit points")
		return false, fmt.Errorf("failed to debit points: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// CreditPoints adds points and returns the new balance.
func (r *userRepository) CreditPoints(ctx context.Context, db Querier, userID uuid.UUID, amount int64) (int64, error) {
	var balance int64
	err := db.QueryRow(ctx, `
		UPDATE users SET points = points + $1 WHERE id = $2 RETURNING points
	`, amount, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrOrderNotFound
		}
		r.logger.Error().
			Err(err).
			Str("user_id", userID.String()).
			Int64("amount", amount).
			Msg("failed to credit points")
		return 0, fmt.Errorf("failed to credit points: %w", err)
	}

	return balance, nil
}

// ClearCart removes all of the user's cart lines.
func (r *userRepository) ClearCart(ctx context.Context, db Querier, userID uuid.UUID) error {
	_, err := db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to clear cart")
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
