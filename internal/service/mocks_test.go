package service

import (
	"context"
	"time"

	"techshop/internal/model"
	"techshop/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// stubQuerier satisfies repository.Querier for tests where the database
// handle is only passed through to mocked repositories.
type stubQuerier struct{}

func (stubQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (stubQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (stubQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (stubQuerier) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults  { return nil }

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) SupportsTransactions(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockOrderRepository) Create(ctx context.Context, db repository.Querier, order *model.Order) error {
	args := m.Called(ctx, db, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByCode(ctx context.Context, code string) (*model.Order, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) AppendStatus(ctx context.Context, db repository.Querier, orderID uuid.UUID, status model.OrderStatus, at time.Time) error {
	args := m.Called(ctx, db, orderID, status, at)
	return args.Error(0)
}

func (m *MockOrderRepository) MarkPaid(ctx context.Context, db repository.Querier, orderID uuid.UUID, paidAt time.Time, paymentStatus string) error {
	args := m.Called(ctx, db, orderID, paidAt, paymentStatus)
	return args.Error(0)
}

func (m *MockOrderRepository) SetCancellation(ctx context.Context, db repository.Querier, orderID uuid.UUID, reason string, at time.Time) error {
	args := m.Called(ctx, db, orderID, reason, at)
	return args.Error(0)
}

func (m *MockOrderRepository) SetPaymentProof(ctx context.Context, db repository.Querier, orderID uuid.UUID, proof *model.PaymentProof) error {
	args := m.Called(ctx, db, orderID, proof)
	return args.Error(0)
}

// MockProductRepository is a mock implementation of ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetVariant(ctx context.Context, productID, variantID string) (*repository.VariantRecord, error) {
	args := m.Called(ctx, productID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.VariantRecord), args.Error(1)
}

func (m *MockProductRepository) CommitStock(ctx context.Context, db repository.Querier, productID, variantID string, qty int) (bool, error) {
	args := m.Called(ctx, db, productID, variantID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) ReleaseStock(ctx context.Context, db repository.Querier, productID, variantID string, qty int) error {
	args := m.Called(ctx, db, productID, variantID, qty)
	return args.Error(0)
}

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, db repository.Querier, user *model.User) error {
	args := m.Called(ctx, db, user)
	return args.Error(0)
}

func (m *MockUserRepository) DebitPoints(ctx context.Context, db repository.Querier, userID uuid.UUID, amount int64) (bool, error) {
	args := m.Called(ctx, db, userID, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) CreditPoints(ctx context.Context, db repository.Querier, userID uuid.UUID, amount int64) (int64, error) {
	args := m.Called(ctx, db, userID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) ClearCart(ctx context.Context, db repository.Querier, userID uuid.UUID) error {
	args := m.Called(ctx, db, userID)
	return args.Error(0)
}

// MockVoucherRepository is a mock implementation of VoucherRepository.
type MockVoucherRepository struct {
	mock.Mock
}

func (m *MockVoucherRepository) GetByCode(ctx context.Context, code string) (*model.Voucher, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Voucher), args.Error(1)
}

func (m *MockVoucherRepository) HasRedeemed(ctx context.Context, code string, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, code, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockVoucherRepository) Redeem(ctx context.Context, db repository.Querier, code string, userID *uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, db, code, userID, now)
	return args.Bool(0), args.Error(1)
}

// MockStatusService is a mock implementation of StatusService.
type MockStatusService struct {
	mock.Mock
}

func (m *MockStatusService) Transition(ctx context.Context, orderID uuid.UUID, target model.OrderStatus) (*model.Order, error) {
	args := m.Called(ctx, orderID, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }
