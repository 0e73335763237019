package service

import (
	"context"
	"strings"
	"time"

	"techshop/internal/model"
	"techshop/internal/notify"
	"techshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// cancellationService lets a purchaser cancel their own order within a
// fixed window of creation. Admin-driven cancellation goes through the
// status machine directly and is not bound by the window.
type cancellationService struct {
	orders     repository.OrderRepository
	machine    StatusService
	db         repository.Querier
	dispatcher notify.Dispatcher
	window     time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// NewCancellationService creates the purchaser cancellation service.
func NewCancellationService(
	orders repository.OrderRepository,
	machine StatusService,
	db repository.Querier,
	dispatcher notify.Dispatcher,
	windowHours int,
	logger zerolog.Logger,
) CancellationService {
	return &cancellationService{
		orders:     orders,
		machine:    machine,
		db:         db,
		dispatcher: dispatcher,
		window:     time.Duration(windowHours) * time.Hour,
		now:        time.Now,
		logger:     logger.With().Str("service", "cancellation").Logger(),
	}
}

// Cancel cancels the caller's order. Accepted only while the order is
// pending or confirmed, within the window, with a non-empty reason.
func (s *cancellationService) Cancel(ctx context.Context, orderID, callerID uuid.UUID, reason string) (*model.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, model.ErrReasonRequired
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	if order.UserID == nil || *order.UserID != callerID {
		return nil, model.ErrForbidden
	}

	if order.Status != model.StatusPending && order.Status != model.StatusConfirmed {
		return nil, model.ErrInvalidState
	}

	now := s.now().UTC()
	if now.Sub(order.CreatedAt) >= s.window {
		return nil, model.ErrWindowExpired
	}

	cancelled, err := s.machine.Transition(ctx, orderID, model.StatusCancelled)
	if err != nil {
		return nil, err
	}

	if err := s.orders.SetCancellation(ctx, s.db, orderID, reason, now); err != nil {
		// The order is already cancelled; losing the reason is logged, not
		// surfaced.
		s.logger.Error().Err(err).Str("order_code", cancelled.Code).Msg("failed to record cancellation reason")
	} else {
		cancelled.CancelReason = &reason
		cancelled.CancelledAt = &now
	}

	s.logger.Info().
		Str("order_code", cancelled.Code).
		Str("reason", reason).
		Msg("order cancelled by purchaser")

	s.dispatcher.OrderCancelled(ctx, cancelled, reason)

	return cancelled, nil
}
