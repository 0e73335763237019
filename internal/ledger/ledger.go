// Package ledger exposes the two counter services backing order flows: the
// loyalty points balance per account and the stock counter per product
// variant. Both rely on the store's conditional single-row updates for
// correctness; no in-process locking is involved.
package ledger

import (
	"context"

	"techshop/internal/model"
	"techshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Domain errors raised by the ledgers.
var (
	ErrInsufficientPoints = model.NewDomainError("INSUFFICIENT_POINTS", "Point balance is lower than the requested debit")
)

// LoyaltyLedger mutates per-account point balances. Debit fails closed:
// when the balance is lower than the amount nothing is mutated.
type LoyaltyLedger interface {
	Debit(ctx context.Context, db repository.Querier, userID uuid.UUID, amount int64) error
	Credit(ctx context.Context, db repository.Querier, userID uuid.UUID, amount int64) (int64, error)
}

// InventoryLedger mutates per-variant stock counters. Commit fails closed
// when available stock is below the quantity at commit time; a prior
// ReserveCheck is advisory only, never a hold.
type InventoryLedger interface {
	ReserveCheck(ctx context.Context, productID, variantID string, qty int) error
	Commit(ctx context.Context, db repository.Querier, productID, variantID string, qty int) error
	Release(ctx context.Context, db repository.Querier, productID, variantID string, qty int) error
}

type loyaltyLedger struct {
	users  repository.UserRepository
	logger zerolog.Logger
}

// NewLoyaltyLedger creates the points ledger over the user repository.
func NewLoyaltyLedger(users repository.UserRepository, logger zerolog.Logger) LoyaltyLedger {
	return &loyaltyLedger{
		users:  users,
		logger: logger.With().Str("ledger", "loyalty").Logger(),
	}
}

func (l *loyaltyLedger) Debit(ctx context.Context, db repository.Querier, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	applied, err := l.users.DebitPoints(ctx, db, userID, amount)
	if err != nil {
		return err
	}
	if !applied {
		l.logger.Debug().
			Str("user_id", userID.String()).
			Int64("amount", amount).
			Msg("debit rejected, balance too low")
		return ErrInsufficientPoints
	}
	return nil
}

func (l *loyaltyLedger) Credit(ctx context.Context, db repository.Querier, userID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		user, err := l.users.GetByID(ctx, userID)
		if err != nil {
			return 0, err
		}
		if user == nil {
			return 0, nil
		}
		return user.Points, nil
	}
	balance, err := l.users.CreditPoints(ctx, db, userID, amount)
	if err != nil {
		return 0, err
	}
	l.logger.Debug().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Int64("balance", balance).
		Msg("points credited")
	return balance, nil
}

type inventoryLedger struct {
	products repository.ProductRepository
	logger   zerolog.Logger
}

// NewInventoryLedger creates the stock ledger over the product repository.
func NewInventoryLedger(products repository.ProductRepository, logger zerolog.Logger) InventoryLedger {
	return &inventoryLedger{
		products: products,
		logger:   logger.With().Str("ledger", "inventory").Logger(),
	}
}

// ReserveCheck is a read-only sufficiency check at validation time.
func (l *inventoryLedger) ReserveCheck(ctx context.Context, productID, variantID string, qty int) error {
	rec, err := l.products.GetVariant(ctx, productID, variantID)
	if err != nil {
		return err
	}
	if rec == nil {
		return model.ErrProductNotFound
	}
	if rec.Variant.Stock < qty {
		return model.NewOutOfStockError(productID, variantID, qty, rec.Variant.Stock)
	}
	return nil
}

// Commit permanently decrements available stock.
func (l *inventoryLedger) Commit(ctx context.Context, db repository.Querier, productID, variantID string, qty int) error {
	applied, err := l.products.CommitStock(ctx, db, productID, variantID, qty)
	if err != nil {
		return err
	}
	if !applied {
		l.logger.Debug().
			Str("product_id", productID).
			Str("variant_id", variantID).
			Int("qty", qty).
			Msg("stock commit rejected")
		return model.NewInsufficientStockError(productID, variantID)
	}
	return nil
}

// Release returns stock previously committed.
func (l *inventoryLedger) Release(ctx context.Context, db repository.Querier, productID, variantID string, qty int) error {
	return l.products.ReleaseStock(ctx, db, productID, variantID, qty)
}
