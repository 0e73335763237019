package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"techshop/internal/config"
	"techshop/internal/ledger"
	"techshop/internal/model"
	"techshop/internal/notify"
	"techshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// orderService implements OrderService.
type orderService struct {
	orders     repository.OrderRepository
	products   repository.ProductRepository
	users      repository.UserRepository
	vouchers   repository.VoucherRepository
	inventory  ledger.InventoryLedger
	loyalty    ledger.LoyaltyLedger
	dispatcher notify.Dispatcher
	db         repository.Querier
	applier    OrderApplier
	fallback   OrderApplier
	machine    StatusService

	loyaltyCfg config.LoyaltyConfig
	orderCfg   config.OrderConfig

	now    func() time.Time
	logger zerolog.Logger
}

// NewOrderService creates the order creation service. applier is the
// strategy picked by the startup probe; fallback is the sequential applier
// used for the one-shot retry when the store rejects a transaction at
// runtime.
func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	vouchers repository.VoucherRepository,
	inventory ledger.InventoryLedger,
	loyalty ledger.LoyaltyLedger,
	dispatcher notify.Dispatcher,
	db repository.Querier,
	applier OrderApplier,
	machine StatusService,
	loyaltyCfg config.LoyaltyConfig,
	orderCfg config.OrderConfig,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orders:     orders,
		products:   products,
		users:      users,
		vouchers:   vouchers,
		inventory:  inventory,
		loyalty:    loyalty,
		dispatcher: dispatcher,
		db:         db,
		applier:    applier,
		fallback:   NewSequentialApplier(db, logger),
		machine:    machine,
		loyaltyCfg: loyaltyCfg,
		orderCfg:   orderCfg,
		now:        time.Now,
		logger:     logger.With().Str("service", "order").Logger(),
	}
}

// Create validates a cart and persists it as a pending order. Stock is only
// checked here, never decremented; the commit happens at the shipping
// transition.
func (s *orderService) Create(ctx context.Context, req *model.CreateOrderRequest, authUserID *uuid.UUID) (*model.OrderSummary, error) {
	if req == nil {
		return nil, model.ErrEmptyCart
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()

	user, newUser, err := s.resolvePurchaser(ctx, req, authUserID, now)
	if err != nil {
		return nil, err
	}

	items, subTotal, err := s.snapshotCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	voucher, err := s.resolveVoucher(ctx, req.VoucherCode, user, now)
	if err != nil {
		return nil, err
	}

	tax := subTotal * int64(s.orderCfg.TaxRatePercent) / 100
	shipping := s.orderCfg.ShippingFlatFee
	discount := model.Discount{}
	if voucher != nil {
		discount = model.Discount{
			Code:    voucher.Code,
			Percent: voucher.Percent,
			Amount:  subTotal * int64(voucher.Percent) / 100,
		}
	}
	total := subTotal + tax + shipping - discount.Amount

	pointsUsed := s.capPointsToRedeem(req.PointsToRedeem, user)
	pointsEarned := s.pointsEarned(total)

	order := &model.Order{
		ID:              uuid.New(),
		Code:            newOrderCode(now),
		GuestContact:    req.GuestContact,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		SubTotal:        subTotal,
		ShippingFee:     shipping,
		Tax:             tax,
		Discount:        discount,
		Total:           total,
		Status:          model.StatusPending,
		PaymentStatus:   "unpaid",
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	purchaserID := authUserID
	if purchaserID == nil && user != nil {
		id := user.ID
		purchaserID = &id
	}
	if purchaserID == nil && newUser != nil {
		id := newUser.ID
		purchaserID = &id
	}
	order.UserID = purchaserID
	order.Loyalty = model.LoyaltyPointsRecord{PointsUsed: pointsUsed, PointsEarned: pointsEarned}

	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = order.ID
	}
	order.Items = items

	apply := func(ctx context.Context, db repository.Querier) error {
		if newUser != nil {
			if err := s.users.Create(ctx, db, newUser); err != nil {
				return err
			}
		}

		if voucher != nil {
			applied, err := s.vouchers.Redeem(ctx, db, voucher.Code, purchaserID, now)
			if err != nil {
				return err
			}
			if !applied {
				return model.ErrInvalidVoucher
			}
		}

		if order.Loyalty.PointsUsed > 0 && purchaserID != nil {
			err := s.loyalty.Debit(ctx, db, *purchaserID, order.Loyalty.PointsUsed)
			if errors.Is(err, ledger.ErrInsufficientPoints) {
				// The balance moved between check and debit; the order
				// degrades to zero point use rather than failing.
				s.logger.Warn().
					Str("order_code", order.Code).
					Int64("requested", order.Loyalty.PointsUsed).
					Msg("point balance changed, proceeding without redemption")
				order.Loyalty.PointsUsed = 0
			} else if err != nil {
				return err
			}
		}

		return s.orders.Create(ctx, db, order)
	}

	if err := s.applier.Apply(ctx, apply); err != nil {
		if errors.Is(err, ErrTxUnavailable) {
			s.logger.Warn().
				Str("order_code", order.Code).
				Msg("atomic order creation unavailable, retrying sequentially")
			err = s.fallback.Apply(ctx, apply)
		}
		if err != nil {
			var de *model.DomainError
			if errors.As(err, &de) {
				return nil, err
			}
			s.logger.Error().Err(err).Str("order_code", order.Code).Msg("failed to persist order")
			return nil, model.NewDomainError(model.ErrCodePersistence, "Failed to persist order")
		}
	}

	// Post-persist side effects. None of these may unwind the order.
	if purchaserID != nil {
		if err := s.users.ClearCart(ctx, s.db, *purchaserID); err != nil {
			s.logger.Warn().Err(err).Str("order_code", order.Code).Msg("failed to clear cart")
		}
	}
	s.dispatcher.OrderCreated(ctx, order)
	if newUser != nil {
		s.dispatcher.Welcome(ctx, newUser.Email)
	}

	s.logger.Info().
		Str("order_code", order.Code).
		Int("item_count", len(order.Items)).
		Int64("total", order.Total).
		Msg("order created")

	return &model.OrderSummary{
		Success: true,
		Order:   order,
		Loyalty: order.Loyalty,
	}, nil
}

// resolvePurchaser picks the purchaser account: the authenticated caller,
// an existing account matched by guest email, a freshly provisioned
// account, or none at all (pure guest).
func (s *orderService) resolvePurchaser(ctx context.Context, req *model.CreateOrderRequest, authUserID *uuid.UUID, now time.Time) (user *model.User, newUser *model.User, err error) {
	if authUserID != nil {
		user, err = s.users.GetByID(ctx, *authUserID)
		if err != nil {
			return nil, nil, err
		}
		if user == nil {
			return nil, nil, model.ErrForbidden
		}
		return user, nil, nil
	}

	if req.GuestContact == nil || req.GuestContact.Email == "" {
		return nil, nil, nil
	}

	user, err = s.users.GetByEmail(ctx, req.GuestContact.Email)
	if err != nil {
		return nil, nil, err
	}
	if user != nil {
		return user, nil, nil
	}

	hash, err := randomPasswordHash()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to provision account: %w", err)
	}
	newUser = &model.User{
		ID:           uuid.New(),
		Name:         req.GuestContact.Name,
		Email:        req.GuestContact.Email,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	return nil, newUser, nil
}

// snapshotCart re-reads every cart line against the live catalogue,
// verifies stock sufficiency and freezes name, image and price.
func (s *orderService) snapshotCart(ctx context.Context, lines []model.CartLine) ([]model.OrderItem, int64, error) {
	items := make([]model.OrderItem, 0, len(lines))
	var subTotal int64

	for _, line := range lines {
		if err := s.inventory.ReserveCheck(ctx, line.ProductID, line.VariantID, line.Quantity); err != nil {
			return nil, 0, err
		}

		rec, err := s.products.GetVariant(ctx, line.ProductID, line.VariantID)
		if err != nil {
			return nil, 0, err
		}
		if rec == nil {
			return nil, 0, model.ErrProductNotFound
		}

		name := rec.ProductName
		if rec.Variant.Name != "" {
			name = rec.ProductName + " " + rec.Variant.Name
		}
		items = append(items, model.OrderItem{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Name:      name,
			Image:     rec.Variant.Image,
			UnitPrice: rec.Variant.Price,
			Quantity:  line.Quantity,
		})
		subTotal += rec.Variant.Price * int64(line.Quantity)
	}

	return items, subTotal, nil
}

// resolveVoucher validates a voucher code against its window, cap and the
// once-per-account rule for points vouchers.
func (s *orderService) resolveVoucher(ctx context.Context, code string, user *model.User, now time.Time) (*model.Voucher, error) {
	if code == "" {
		return nil, nil
	}

	voucher, err := s.vouchers.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if voucher == nil || !voucher.Active(now) {
		return nil, model.ErrInvalidVoucher
	}

	if voucher.PointsRedeemable && user != nil {
		redeemed, err := s.vouchers.HasRedeemed(ctx, code, user.ID)
		if err != nil {
			return nil, err
		}
		if redeemed {
			return nil, model.ErrInvalidVoucher
		}
	}

	return voucher, nil
}

// capPointsToRedeem applies the over-request rule: a request above the
// balance degrades to zero instead of failing the order.
func (s *orderService) capPointsToRedeem(requested int64, user *model.User) int64 {
	if requested <= 0 || user == nil {
		return 0
	}
	if requested > user.Points {
		s.logger.Debug().
			Str("user_id", user.ID.String()).
			Int64("requested", requested).
			Int64("balance", user.Points).
			Msg("points over-request capped to zero")
		return 0
	}
	return requested
}

// pointsEarned converts the order total into reward points, floor-rounded.
func (s *orderService) pointsEarned(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return total * int64(s.loyaltyCfg.EarnRatePercent) / 100 / s.loyaltyCfg.PointsUnit
}

// GetByID retrieves an order.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// StatusByCode returns the unauthenticated polling projection.
func (s *orderService) StatusByCode(ctx context.Context, code string) (*model.OrderStatusView, error) {
	order, err := s.orders.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	view := &model.OrderStatusView{
		Status:     order.Status,
		IsPaid:     order.IsPaid,
		TotalPrice: order.Total,
	}
	if order.PaidAt != nil {
		paidAt := order.PaidAt.UTC().Format(time.RFC3339)
		view.PaidAt = &paidAt
	}
	return view, nil
}

// AttachPaymentProof stores the proof-of-transfer image reference.
func (s *orderService) AttachPaymentProof(ctx context.Context, orderID uuid.UUID, imageKey string) error {
	proof := &model.PaymentProof{
		ImageKey:   imageKey,
		UploadedAt: s.now().UTC(),
	}
	return s.orders.SetPaymentProof(ctx, s.db, orderID, proof)
}

// ConfirmPayment marks a COD or bank-transfer order as paid and, when the
// order is still pending, confirms it. Confirming an already-paid order is
// a no-op.
func (s *orderService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, verifier string) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	if order.IsPaid {
		return order, nil
	}

	now := s.now().UTC()
	if err := s.orders.MarkPaid(ctx, s.db, order.ID, now, "paid:manual"); err != nil {
		return nil, err
	}
	order.IsPaid = true
	order.PaidAt = &now
	order.PaymentStatus = "paid:manual"

	if order.PaymentProof != nil {
		order.PaymentProof.VerifiedBy = verifier
		order.PaymentProof.VerifiedAt = &now
		if err := s.orders.SetPaymentProof(ctx, s.db, order.ID, order.PaymentProof); err != nil {
			s.logger.Warn().Err(err).Str("order_code", order.Code).Msg("failed to record proof verification")
		}
	}

	if order.Status == model.StatusPending {
		confirmed, err := s.machine.Transition(ctx, order.ID, model.StatusConfirmed)
		if err != nil {
			// Payment is recorded; the stuck status is left for an operator.
			s.logger.Error().Err(err).Str("order_code", order.Code).Msg("failed to confirm paid order")
		} else {
			order.Status = confirmed.Status
			order.StatusHistory = confirmed.StatusHistory
		}
	}

	s.dispatcher.PaymentConfirmed(ctx, order)

	return order, nil
}

// newOrderCode builds the human-readable order identifier.
func newOrderCode(now time.Time) string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), hex.EncodeToString(suffix[:]))
}

// randomPasswordHash generates the placeholder credential for a guest
// account. The password itself is discarded; the account is claimed later
// through the reset flow.
func randomPasswordHash() (string, error) {
	var pw [16]byte
	if _, err := rand.Read(pw[:]); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(pw[:])), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
