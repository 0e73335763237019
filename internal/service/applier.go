package service

import (
	"context"
	"errors"
	"fmt"

	"techshop/internal/repository"

	"github.com/rs/zerolog"
)

// ErrTxUnavailable marks a failure caused by the store rejecting the
// transaction itself, as opposed to the work inside it. Order creation
// retries once without a transaction when it sees this.
var ErrTxUnavailable = errors.New("store does not support transactions")

// OrderApplier runs a multi-write order mutation either inside one store
// transaction or as plain sequential writes. Which one is in use is decided
// at startup by probing the store.
type OrderApplier interface {
	// Atomic reports whether the applier provides all-or-nothing semantics.
	Atomic() bool

	// Apply runs fn against the store.
	Apply(ctx context.Context, fn func(ctx context.Context, db repository.Querier) error) error
}

// NewOrderApplier probes the store and returns the transactional applier
// when the store supports it, the sequential one otherwise.
func NewOrderApplier(ctx context.Context, orders repository.OrderRepository, db repository.Querier, logger zerolog.Logger) OrderApplier {
	if orders.SupportsTransactions(ctx) {
		return NewTxApplier(orders, logger)
	}
	logger.Warn().Msg("store lacks transaction support, order writes will be sequential")
	return NewSequentialApplier(db, logger)
}

type txApplier struct {
	orders repository.OrderRepository
	logger zerolog.Logger
}

// NewTxApplier creates the all-or-nothing applier.
func NewTxApplier(orders repository.OrderRepository, logger zerolog.Logger) OrderApplier {
	return &txApplier{
		orders: orders,
		logger: logger.With().Str("applier", "atomic").Logger(),
	}
}

func (a *txApplier) Atomic() bool { return true }

func (a *txApplier) Apply(ctx context.Context, fn func(ctx context.Context, db repository.Querier) error) error {
	tx, err := a.orders.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTxUnavailable, err)
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			a.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order transaction: %w", err)
	}
	return nil
}

type sequentialApplier struct {
	db     repository.Querier
	logger zerolog.Logger
}

// NewSequentialApplier creates the non-atomic fallback. A failure midway
// leaves earlier writes in place; no compensation is attempted. This is an
// accepted trade-off for stores without transaction support.
func NewSequentialApplier(db repository.Querier, logger zerolog.Logger) OrderApplier {
	return &sequentialApplier{
		db:     db,
		logger: logger.With().Str("applier", "sequential").Logger(),
	}
}

func (a *sequentialApplier) Atomic() bool { return false }

func (a *sequentialApplier) Apply(ctx context.Context, fn func(ctx context.Context, db repository.Querier) error) error {
	if err := fn(ctx, a.db); err != nil {
		a.logger.Warn().Err(err).Msg("sequential apply failed partway, earlier writes are kept")
		return err
	}
	return nil
}
