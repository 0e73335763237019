package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"techshop/internal/config"
	"techshop/internal/ledger"
	"techshop/internal/model"
	"techshop/internal/notify"
	"techshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderServiceFixture struct {
	orders   *MockOrderRepository
	products *MockProductRepository
	users    *MockUserRepository
	vouchers *MockVoucherRepository
	machine  *MockStatusService
	service  OrderService
}

func newOrderServiceFixture(applier OrderApplier) *orderServiceFixture {
	logger := zerolog.Nop()
	f := &orderServiceFixture{
		orders:   new(MockOrderRepository),
		products: new(MockProductRepository),
		users:    new(MockUserRepository),
		vouchers: new(MockVoucherRepository),
		machine:  new(MockStatusService),
	}
	if applier == nil {
		applier = NewSequentialApplier(stubQuerier{}, logger)
	}
	f.service = NewOrderService(
		f.orders, f.products, f.users, f.vouchers,
		ledger.NewInventoryLedger(f.products, logger),
		ledger.NewLoyaltyLedger(f.users, logger),
		notify.Noop{}, stubQuerier{}, applier, f.machine,
		config.LoyaltyConfig{EarnRatePercent: 10, PointsUnit: 1000},
		config.OrderConfig{CancelWindowHours: 24},
		logger,
	)
	return f
}

func variantRecord(productName, variantName string, price int64, stock int) *repository.VariantRecord {
	return &repository.VariantRecord{
		ProductName: productName,
		Variant:     model.Variant{Name: variantName, Price: price, Stock: stock},
	}
}

func validRequest() *model.CreateOrderRequest {
	return &model.CreateOrderRequest{
		Items: []model.CartLine{
			{ProductID: "P001", VariantID: "V1", Quantity: 2},
			{ProductID: "P002", VariantID: "V1", Quantity: 1},
		},
		ShippingAddress: model.ShippingAddress{
			FullName: "Nguyen Van A",
			Phone:    "0900000000",
			Line1:    "1 Tran Hung Dao",
			City:     "Ho Chi Minh City",
		},
		PaymentMethod: model.PaymentCOD,
	}
}

func TestOrderService_Create_Success(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(nil)

	userID := uuid.New()
	user := &model.User{ID: userID, Name: "A", Email: "a@example.com", Points: 500}

	f.users.On("GetByID", ctx, userID).Return(user, nil)
	f.products.On("GetVariant", ctx, "P001", "V1").Return(variantRecord("Phone", "Black", 250_000, 10), nil)
	f.products.On("GetVariant", ctx, "P002", "V1").Return(variantRecord("Charger", "", 500_000, 5), nil)
	f.orders.On("Create", ctx, mock.Anything, mock.AnythingOfType("*model.Order")).Return(nil)
	f.users.On("ClearCart", ctx, mock.Anything, userID).Return(nil)

	summary, err := f.service.Create(ctx, validRequest(), &userID)

	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.Success)

	order := summary.Order
	require.NotNil(t, order)
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.True(t, strings.HasPrefix(order.Code, "ORD-"))
	assert.Equal(t, model.StatusPending, order.Status)
	require.NotNil(t, order.UserID)
	assert.Equal(t, userID, *order.UserID)

	// 2 x 250,000 + 1 x 500,000
	assert.Equal(t, int64(1_000_000), order.SubTotal)
	assert.Equal(t, int64(1_000_000), order.Total)
	assert.Equal(t, order.SubTotal+order.Tax+order.ShippingFee-order.Discount.Amount, order.Total)

	// 10% of the total, one point per 1,000
	assert.Equal(t, int64(100), order.Loyalty.PointsEarned)
	assert.Equal(t, int64(0), order.Loyalty.PointsUsed)

	require.Len(t, order.Items, 2)
	assert.Equal(t, "Phone Black", order.Items[0].Name)
	assert.Equal(t, int64(250_000), order.Items[0].UnitPrice)
	assert.Equal(t, "Charger", order.Items[1].Name)

	f.orders.AssertExpectations(t)
	f.users.AssertExpectations(t)
}

func TestOrderService_Create_EmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(nil)

	req := validRequest()
	req.Items = nil

	summary, err := f.service.Create(ctx, req, nil)

	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, model.IsCode(err, model.ErrCodeEmptyCart))
	f.orders.AssertNotCalled(t, "Create")
}

func TestOrderService_Create_OutOfStock(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(nil)

	req := validRequest()
	req.Items = []model.CartLine{{ProductID: "P001", VariantID: "V1", Quantity: 3}}

	f.products.On("GetVariant", ctx, "P001", "V1").Return(variantRecord("Phone", "Black", 250_000, 1), nil)

	summary, err := f.service.Create(ctx, req, nil)

	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, model.IsCode(err, model.ErrCodeOutOfStock))
	f.orders.AssertNotCalled(t, "Create")
}

func TestOrderService_Create_WithVoucher(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(nil)

	userID := uuid.New()
	user := &model.User{ID: userID, Email: "a@example.com"}
	now := time.Now()
	voucher := &model.Voucher{
		Code:       "SALE10",
		Percent:    10,
		MaxUses:    100,
		Used:       1,
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(time.Hour),
	}

	req := validRequest()
	req.VoucherCode = "SALE10"

	f.users.On("GetByID", ctx, userID).Return(user, nil)
	f.products.On("GetVariant", ctx, "P001", "V1").Return(variantRecord("Phone", "Black", 250_000, 10), nil)
	f.products.On("GetVariant", ctx, "P002", "V1").Return(variantRecord("Charger", "", 500_000, 5), nil)
	f.vouchers.On("GetByCode", ctx, "SALE10").Return(voucher, nil)
	f.vouchers.On("Redeem", ctx, mock.Anything, "SALE10", mock.Anything, mock.AnythingOfType("time.Time")).Return(true, nil)
	f.orders.On("Create", ctx, mock.Anything, mock.AnythingOfType("*model.Order")).Return(nil)
	f.users.On("ClearCart", ctx, mock.Anything, userID).Return(nil)

	summary, err := f.service.Create(ctx, req, &userID)

	require.NoError(t, err)
	order := summary.Order
	assert.Equal(t, "SALE10", order.Discount.Code)
	assert.Equal(t, int64(100_000), order.Discount.Amount)
	assert.Equal(t, int64(900_000), order.Total)
	assert.Equal(t, order.SubTotal+order.Tax+order.ShippingFee-order.Discount.Amount, order.Total)

	f.vouchers.AssertExpectations(t)
}

func TestOrderService_Create_InvalidVoucher(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(nil)

	req := validRequest()
	req.VoucherCode = "NOPE"

	f.products.On("GetVariant", ctx, "P001", "V1").Return(variantRecord("Phone", "Black", 250_000, 10), nil)
	f.products.On("GetVariant", ctx, "P002", "V1").Return(variantRecord("Charger", "", 500_000, 5), nil)
	f.vouchers.On("GetByCode", ctx, "NOPE").Return(nil, nil)

	summary, err := f.service.Create(ctx, req, nil)

	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, model.IsCode(err, model.ErrCodeInvalidVoucher))
	f.orders.AssertNotCalled(t, "Create")
}

func TestOrderService_Create_PointsOverRequestCappedToZero(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(nil)

	userID := uuid.New()
	user := &model.User{ID: userID, Email: "a@example.com", Points: 50}

	req := validRequest()
	req.PointsToRedeem = 100

	f.users.On("GetByID", ctx, userID).Return(user, nil)
	f.products.On("GetVariant", ctx, "P001", "V1").Return(variantRecord("Phone", "Black", 250_000, 10), nil)
	f.products.On("GetVariant", ctx, "P002", "V1").Return(variantRecord("Charger", "", 500_000, 5), nil)
	f.orders.On("Create", ctx, mock.Anything, mock.AnythingOfType("*model.Order")).Return(nil)
	f.users.On("ClearCart", ctx, mock.Anything, userID).Return(nil)

	summary, err := f.service.Create(ctx, req, &userID)

	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Order.Loyalty.PointsUsed)
	f.users.AssertNotCalled(t, "DebitPoints")
}

func TestOrderService_Create_PointsDebited(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(nil)

	userID := uuid.New()
	user := &model.User{ID: userID, Email: "a@example.com", Points: 200}

	req := validRequest()
	req.PointsToRedeem = 150

	f.users.On("GetByID", ctx, userID).Return(user, nil)
	f.products.On("GetVariant", ctx, "P001", "V1").Return(variantRecord("Phone", "Black", 250_000, 10), nil)
	f.products.On("GetVariant", ctx, "P002", "V1").Return(variantRecord("Charger", "", 500_000, 5), nil)
	f.users.On("DebitPoints", ctx, mock.Anything, userID, int64(150)).Return(true, nil)
	f.orders.On("Create", ctx, mock.Anything, mock.AnythingOfType("*model.Order")).Return(nil)
	f.users.On("ClearCart", ctx, mock.Anything, userID).Return(nil)

	summary, err := f.service.Create(ctx, req, &userID)

	require.NoError(t, err)
	assert.Equal(t, int64(150), summary.Order.Loyalty.PointsUsed)
	// Redeemed points do not change the order total
	assert.Equal(t, int64(1_000_000), summary.Order.Total)
	f.users.AssertExpectations(t)
}

func TestOrderService_Create_GuestProvisionsAccount(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(nil)

	req := validRequest()
	req.GuestContact = &model.GuestContact{Name: "Guest", Email: "guest@example.com"}

	f.users.On("GetByEmail", ctx, "guest@example.com").Return(nil, nil)
	f.products.On("GetVariant", ctx, "P001", "V1").Return(variantRecord("Phone", "Black", 250_000, 10), nil)
	f.products.On("GetVariant", ctx, "P002", "V1").Return(variantRecord("Charger", "", 500_000, 5), nil)
	f.users.On("Create", ctx, mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
	f.orders.On("Create", ctx, mock.Anything, mock.AnythingOfType("*model.Order")).Return(nil)
	f.users.On("ClearCart", ctx, mock.Anything, mock.AnythingOfType("uuid.UUID")).Return(nil)

	summary, err := f.service.Create(ctx, req, nil)

	require.NoError(t, err)
	require.NotNil(t, summary.Order.UserID)

	created := f.users.Calls[1].Arguments.Get(2).(*model.User)
	assert.Equal(t, "guest@example.com", created.Email)
	assert.NotEmpty(t, created.PasswordHash)
	assert.Equal(t, created.ID, *summary.Order.UserID)

	f.users.AssertExpectations(t)
}

func TestOrderService_Create_RetriesSequentiallyWhenTxUnavailable(t *testing.T) {
	ctx := context.Background()

	f := newOrderServiceFixture(nil)
	// Replace the applier with one whose BeginTx always fails, forcing the
	// one-shot sequential retry.
	failing := new(MockOrderRepository)
	failing.On("BeginTx", ctx).Return(nil, errors.New("connection refused"))
	f.service.(*orderService).applier = NewTxApplier(failing, zerolog.Nop())

	f.products.On("GetVariant", ctx, "P001", "V1").Return(variantRecord("Phone", "Black", 250_000, 10), nil)
	f.products.On("GetVariant", ctx, "P002", "V1").Return(variantRecord("Charger", "", 500_000, 5), nil)
	f.orders.On("Create", ctx, mock.Anything, mock.AnythingOfType("*model.Order")).Return(nil)

	summary, err := f.service.Create(ctx, validRequest(), nil)

	require.NoError(t, err)
	require.NotNil(t, summary)
	f.orders.AssertNumberOfCalls(t, "Create", 1)
}

func TestOrderService_StatusByCode(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(nil)

	paidAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	order := &model.Order{
		Code:   "ORD-20250601-abcd1234",
		Status: model.StatusConfirmed,
		IsPaid: true,
		PaidAt: &paidAt,
		Total:  900_000,
	}

	f.orders.On("GetByCode", ctx, order.Code).Return(order, nil)
	f.orders.On("GetByCode", ctx, "MISSING").Return(nil, nil)

	view, err := f.service.StatusByCode(ctx, order.Code)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, view.Status)
	assert.True(t, view.IsPaid)
	require.NotNil(t, view.PaidAt)
	assert.Equal(t, "2025-06-01T12:00:00Z", *view.PaidAt)
	assert.Equal(t, int64(900_000), view.TotalPrice)

	_, err = f.service.StatusByCode(ctx, "MISSING")
	require.Error(t, err)
	assert.True(t, model.IsCode(err, model.ErrCodeOrderNotFound))
}

func TestOrderService_ConfirmPayment_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(nil)

	orderID := uuid.New()
	paidAt := time.Now().UTC()
	order := &model.Order{ID: orderID, Code: "ORD-1", IsPaid: true, PaidAt: &paidAt}

	f.orders.On("GetByID", ctx, orderID).Return(order, nil)

	result, err := f.service.ConfirmPayment(ctx, orderID, "admin")

	require.NoError(t, err)
	assert.True(t, result.IsPaid)
	f.orders.AssertNotCalled(t, "MarkPaid")
	f.machine.AssertNotCalled(t, "Transition")
}

func TestOrderService_ConfirmPayment_MarksPaidAndVerifiesProof(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(nil)

	orderID := uuid.New()
	order := &model.Order{
		ID:           orderID,
		Code:         "ORD-1",
		Status:       model.StatusPending,
		PaymentProof: &model.PaymentProof{ImageKey: "proofs/ORD-1.jpg"},
	}

	f.orders.On("GetByID", ctx, orderID).Return(order, nil)
	f.orders.On("MarkPaid", ctx, mock.Anything, orderID, mock.AnythingOfType("time.Time"), "paid:manual").Return(nil)
	f.orders.On("SetPaymentProof", ctx, mock.Anything, orderID, mock.AnythingOfType("*model.PaymentProof")).Return(nil)
	f.machine.On("Transition", ctx, orderID, model.StatusConfirmed).
		Return(&model.Order{ID: orderID, Code: "ORD-1", Status: model.StatusConfirmed}, nil)

	result, err := f.service.ConfirmPayment(ctx, orderID, "admin")

	require.NoError(t, err)
	assert.True(t, result.IsPaid)
	require.NotNil(t, result.PaidAt)
	assert.Equal(t, model.StatusConfirmed, result.Status)
	assert.Equal(t, "admin", result.PaymentProof.VerifiedBy)
	require.NotNil(t, result.PaymentProof.VerifiedAt)
	f.orders.AssertExpectations(t)
	f.machine.AssertExpectations(t)
}

func TestOrderService_ConfirmPayment_ShippingOrderKeepsStatus(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(nil)

	// COD paid on delivery: the order is well past pending and only the
	// payment flags change.
	orderID := uuid.New()
	order := &model.Order{ID: orderID, Code: "ORD-1", Status: model.StatusShipping}

	f.orders.On("GetByID", ctx, orderID).Return(order, nil)
	f.orders.On("MarkPaid", ctx, mock.Anything, orderID, mock.AnythingOfType("time.Time"), "paid:manual").Return(nil)

	result, err := f.service.ConfirmPayment(ctx, orderID, "admin")

	require.NoError(t, err)
	assert.True(t, result.IsPaid)
	assert.Equal(t, model.StatusShipping, result.Status)
	f.machine.AssertNotCalled(t, "Transition")
}
