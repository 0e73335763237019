package service

import (
	"context"
	"testing"
	"time"

	"techshop/internal/model"
	"techshop/internal/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCancellationFixture(now time.Time) (*statusMachineFixture, CancellationService) {
	f := newStatusMachineFixture()
	svc := NewCancellationService(f.orders, f.machine, stubQuerier{}, notify.Noop{}, 24, zerolog.Nop())
	svc.(*cancellationService).now = func() time.Time { return now }
	return f, svc
}

func TestCancellation_Cancel_WithinWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	f, svc := newCancellationFixture(now)

	userID := uuid.New()
	order := twoLineOrder(model.StatusPending)
	order.UserID = &userID
	order.CreatedAt = now.Add(-23 * time.Hour)

	f.orders.On("GetByID", ctx, order.ID).Return(order, nil)
	f.orders.On("AppendStatus", ctx, mock.Anything, order.ID, model.StatusCancelled, mock.AnythingOfType("time.Time")).Return(nil)
	f.orders.On("SetCancellation", ctx, mock.Anything, order.ID, "changed my mind", now).Return(nil)

	cancelled, err := svc.Cancel(ctx, order.ID, userID, "changed my mind")

	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "changed my mind", *cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)
	f.orders.AssertExpectations(t)
}

func TestCancellation_Cancel_WindowExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	f, svc := newCancellationFixture(now)

	userID := uuid.New()
	order := twoLineOrder(model.StatusPending)
	order.UserID = &userID
	order.CreatedAt = now.Add(-24 * time.Hour)

	f.orders.On("GetByID", ctx, order.ID).Return(order, nil)

	cancelled, err := svc.Cancel(ctx, order.ID, userID, "too late")

	require.Error(t, err)
	assert.Nil(t, cancelled)
	assert.True(t, model.IsCode(err, model.ErrCodeWindowExpired))
	f.orders.AssertNotCalled(t, "AppendStatus")
}

func TestCancellation_Cancel_ReasonRequired(t *testing.T) {
	ctx := context.Background()
	_, svc := newCancellationFixture(time.Now())

	cancelled, err := svc.Cancel(ctx, uuid.New(), uuid.New(), "   ")

	require.Error(t, err)
	assert.Nil(t, cancelled)
	assert.True(t, model.IsCode(err, model.ErrCodeReasonRequired))
}

func TestCancellation_Cancel_WrongOwner(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	f, svc := newCancellationFixture(now)

	owner := uuid.New()
	order := twoLineOrder(model.StatusPending)
	order.UserID = &owner
	order.CreatedAt = now.Add(-time.Hour)

	f.orders.On("GetByID", ctx, order.ID).Return(order, nil)

	cancelled, err := svc.Cancel(ctx, order.ID, uuid.New(), "not mine")

	require.Error(t, err)
	assert.Nil(t, cancelled)
	assert.True(t, model.IsCode(err, model.ErrCodeForbidden))
}

func TestCancellation_Cancel_GuestOrderForbidden(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	f, svc := newCancellationFixture(now)

	order := twoLineOrder(model.StatusPending)
	order.CreatedAt = now.Add(-time.Hour)

	f.orders.On("GetByID", ctx, order.ID).Return(order, nil)

	cancelled, err := svc.Cancel(ctx, order.ID, uuid.New(), "guest order")

	require.Error(t, err)
	assert.Nil(t, cancelled)
	assert.True(t, model.IsCode(err, model.ErrCodeForbidden))
}

func TestCancellation_Cancel_StatusGating(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for _, status := range []model.OrderStatus{model.StatusShipping, model.StatusDelivered, model.StatusCancelled} {
		f, svc := newCancellationFixture(now)

		userID := uuid.New()
		order := twoLineOrder(status)
		order.UserID = &userID
		order.CreatedAt = now.Add(-time.Hour)

		f.orders.On("GetByID", ctx, order.ID).Return(order, nil)

		cancelled, err := svc.Cancel(ctx, order.ID, userID, "reason")

		require.Error(t, err, "status %s should reject purchaser cancellation", status)
		assert.Nil(t, cancelled)
		assert.True(t, model.IsCode(err, model.ErrCodeInvalidState))
		f.orders.AssertNotCalled(t, "AppendStatus")
	}
}

func TestCancellation_Cancel_OrderNotFound(t *testing.T) {
	ctx := context.Background()
	f, svc := newCancellationFixture(time.Now())

	orderID := uuid.New()
	f.orders.On("GetByID", ctx, orderID).Return(nil, nil)

	cancelled, err := svc.Cancel(ctx, orderID, uuid.New(), "reason")

	require.Error(t, err)
	assert.Nil(t, cancelled)
	assert.True(t, model.IsCode(err, model.ErrCodeOrderNotFound))
}
