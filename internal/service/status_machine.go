package service

import (
	"context"
	"time"

	"techshop/internal/ledger"
	"techshop/internal/model"
	"techshop/internal/notify"
	"techshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StatusMachine governs order status transitions and their side effects on
// the inventory and loyalty ledgers. Side effects are applied before the
// status write: a transition whose side effect fails leaves the status
// untouched.
type statusMachine struct {
	orders     repository.OrderRepository
	inventory  ledger.InventoryLedger
	loyalty    ledger.LoyaltyLedger
	db         repository.Querier
	dispatcher notify.Dispatcher
	now        func() time.Time
	logger     zerolog.Logger
}

// NewStatusMachine creates the transition service.
func NewStatusMachine(
	orders repository.OrderRepository,
	inventory ledger.InventoryLedger,
	loyalty ledger.LoyaltyLedger,
	db repository.Querier,
	dispatcher notify.Dispatcher,
	logger zerolog.Logger,
) StatusService {
	return &statusMachine{
		orders:     orders,
		inventory:  inventory,
		loyalty:    loyalty,
		db:         db,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     logger.With().Str("service", "status").Logger(),
	}
}

// Transition moves an order to the target status, applying ledger side
// effects first. A request for the current status is a no-op.
func (m *statusMachine) Transition(ctx context.Context, orderID uuid.UUID, target model.OrderStatus) (*model.Order, error) {
	if !target.Valid() {
		return nil, model.NewDomainError(model.ErrCodeInvalidState, "Unknown order status")
	}

	order, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	from := order.Status
	if from == target {
		return order, nil
	}
	if from.Terminal() {
		return nil, model.ErrTerminalState
	}

	if err := m.applySideEffects(ctx, order, from, target); err != nil {
		return nil, err
	}

	at := m.now().UTC()
	if err := m.orders.AppendStatus(ctx, m.db, order.ID, target, at); err != nil {
		return nil, err
	}

	order.Status = target
	order.UpdatedAt = at
	order.StatusHistory = append(order.StatusHistory, model.StatusChange{Status: target, ChangedAt: at})

	m.logger.Info().
		Str("order_code", order.Code).
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("order status changed")

	m.dispatcher.StatusChanged(ctx, order, from, target)

	return order, nil
}

func (m *statusMachine) applySideEffects(ctx context.Context, order *model.Order, from, target model.OrderStatus) error {
	// Stock is committed on entry to shipping and released on the way back
	// out. Current status is the committed-stock marker: an order sitting
	// in shipping holds its stock, any other status does not.
	switch {
	case target == model.StatusShipping:
		if err := m.commitStock(ctx, order); err != nil {
			return err
		}
	case from == model.StatusShipping && (target == model.StatusPending || target == model.StatusConfirmed):
		m.releaseStock(ctx, order)
	}

	switch target {
	case model.StatusDelivered:
		// Terminal, so this runs at most once per order.
		if order.UserID != nil && order.Loyalty.PointsEarned > 0 {
			if _, err := m.loyalty.Credit(ctx, m.db, *order.UserID, order.Loyalty.PointsEarned); err != nil {
				return err
			}
		}
	case model.StatusCancelled:
		if order.UserID != nil && order.Loyalty.PointsUsed > 0 {
			if _, err := m.loyalty.Credit(ctx, m.db, *order.UserID, order.Loyalty.PointsUsed); err != nil {
				return err
			}
		}
		if from == model.StatusShipping {
			m.releaseStock(ctx, order)
		}
	}

	return nil
}

// commitStock decrements every line item's stock. Decrements are
// independent conditional updates per variant, not one cross-product
// transaction: on failure the already-applied lines are released again
// before reporting the shortfall.
func (m *statusMachine) commitStock(ctx context.Context, order *model.Order) error {
	for i, item := range order.Items {
		if err := m.inventory.Commit(ctx, m.db, item.ProductID, item.VariantID, item.Quantity); err != nil {
			for _, applied := range order.Items[:i] {
				if relErr := m.inventory.Release(ctx, m.db, applied.ProductID, applied.VariantID, applied.Quantity); relErr != nil {
					m.logger.Error().
						Err(relErr).
						Str("order_code", order.Code).
						Str("product_id", applied.ProductID).
						Msg("failed to roll back stock commit")
				}
			}
			return err
		}
	}
	return nil
}

// releaseStock returns all line items' stock. Release cannot fail a
// transition: errors are logged and the transition proceeds.
func (m *statusMachine) releaseStock(ctx context.Context, order *model.Order) {
	for _, item := range order.Items {
		if err := m.inventory.Release(ctx, m.db, item.ProductID, item.VariantID, item.Quantity); err != nil {
			m.logger.Error().
				Err(err).
				Str("order_code", order.Code).
				Str("product_id", item.ProductID).
				Msg("failed to release stock")
		}
	}
}
