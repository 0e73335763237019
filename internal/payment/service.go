package payment

import (
	"context"
	"net/url"
	"time"

	"techshop/internal/model"
	"techshop/internal/notify"
	"techshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IPN acknowledgement codes returned to the gateway so it stops retrying.
const (
	ipnCodeSuccess          = "00"
	ipnCodeOrderNotFound    = "01"
	ipnCodeAlreadyConfirmed = "02"
	ipnCodeInvalidAmount    = "04"
	ipnCodeInvalidSignature = "97"
	ipnCodeUnknownError     = "99"
)

// IPNResponse is the acknowledgement body for the asynchronous
// server-to-server notification.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// ReturnResult is the verification outcome of the synchronous browser
// return. The return never mutates order state; that is the IPN's job.
type ReturnResult struct {
	Valid        bool   `json:"valid"`
	Success      bool   `json:"success"`
	OrderCode    string `json:"orderCode"`
	ResponseCode string `json:"responseCode"`
}

// StatusTransitioner requests an order status transition. Satisfied by the
// order status machine.
type StatusTransitioner interface {
	Transition(ctx context.Context, orderID uuid.UUID, target model.OrderStatus) (*model.Order, error)
}

// Service reconciles gateway callbacks with order payment state.
type Service struct {
	gateway    *Gateway
	orders     repository.OrderRepository
	db         repository.Querier
	transition StatusTransitioner
	dispatcher notify.Dispatcher
	logger     zerolog.Logger
}

// NewService creates the payment reconciliation service.
func NewService(
	gateway *Gateway,
	orders repository.OrderRepository,
	db repository.Querier,
	transition StatusTransitioner,
	dispatcher notify.Dispatcher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		gateway:    gateway,
		orders:     orders,
		db:         db,
		transition: transition,
		dispatcher: dispatcher,
		logger:     logger.With().Str("service", "payment").Logger(),
	}
}

// CreatePaymentURL builds the signed redirect URL for an existing order.
func (s *Service) CreatePaymentURL(ctx context.Context, orderCode, clientIP, bankCode string) (string, error) {
	order, err := s.orders.GetByCode(ctx, orderCode)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", model.ErrOrderNotFound
	}

	return s.gateway.BuildPaymentURL(URLRequest{
		OrderCode: order.Code,
		Amount:    order.Total,
		ClientIP:  clientIP,
		BankCode:  bankCode,
	})
}

// HandleReturn verifies the browser return redirect. No state changes.
func (s *Service) HandleReturn(ctx context.Context, params url.Values) (*ReturnResult, error) {
	if err := s.gateway.VerifySignature(params); err != nil {
		return nil, err
	}

	code := params.Get("vnp_ResponseCode")
	return &ReturnResult{
		Valid:        true,
		Success:      code == ResponseCodeSuccess,
		OrderCode:    params.Get("vnp_TxnRef"),
		ResponseCode: code,
	}, nil
}

// HandleIPN processes the asynchronous notification. The gateway may
// deliver the same notification more than once: an order already marked
// paid is acknowledged without re-applying any side effect.
func (s *Service) HandleIPN(ctx context.Context, params url.Values) IPNResponse {
	if err := s.gateway.VerifySignature(params); err != nil {
		return IPNResponse{RspCode: ipnCodeInvalidSignature, Message: "Invalid signature"}
	}

	txnRef := params.Get("vnp_TxnRef")
	order, err := s.orders.GetByCode(ctx, txnRef)
	if err != nil {
		s.logger.Error().Err(err).Str("txn_ref", txnRef).Msg("failed to load order for IPN")
		return IPNResponse{RspCode: ipnCodeUnknownError, Message: "Internal error"}
	}
	if order == nil {
		return IPNResponse{RspCode: ipnCodeOrderNotFound, Message: "Order not found"}
	}

	amount, err := ParseAmount(params)
	if err != nil || amount != order.Total {
		return IPNResponse{RspCode: ipnCodeInvalidAmount, Message: "Invalid amount"}
	}

	if order.IsPaid {
		s.logger.Info().Str("order_code", order.Code).Msg("duplicate IPN, order already confirmed")
		return IPNResponse{RspCode: ipnCodeAlreadyConfirmed, Message: "Order already confirmed"}
	}

	if order.Status.Terminal() {
		// A late notification for an order that was cancelled before the
		// gateway confirmed. Acknowledge without recording the payment.
		s.logger.Warn().
			Str("order_code", order.Code).
			Str("status", string(order.Status)).
			Msg("IPN for terminal order ignored")
		return IPNResponse{RspCode: ipnCodeAlreadyConfirmed, Message: "Order already confirmed"}
	}

	responseCode := params.Get("vnp_ResponseCode")
	if responseCode != ResponseCodeSuccess {
		// Failed payment: acknowledge so the gateway stops retrying, but
		// leave the order untouched for another attempt.
		s.logger.Info().
			Str("order_code", order.Code).
			Str("response_code", responseCode).
			Msg("gateway reported failed payment")
		return IPNResponse{RspCode: ipnCodeSuccess, Message: "Confirm Success"}
	}

	now := time.Now().UTC()
	if err := s.orders.MarkPaid(ctx, s.db, order.ID, now, "paid:"+responseCode); err != nil {
		s.logger.Error().Err(err).Str("order_code", order.Code).Msg("failed to mark order paid")
		return IPNResponse{RspCode: ipnCodeUnknownError, Message: "Internal error"}
	}

	if order.Status == model.StatusPending {
		if _, err := s.transition.Transition(ctx, order.ID, model.StatusConfirmed); err != nil {
			// Payment is recorded; the stuck status is left for an operator.
			s.logger.Error().Err(err).Str("order_code", order.Code).Msg("failed to confirm paid order")
		}
	}

	s.dispatcher.PaymentConfirmed(ctx, order)

	return IPNResponse{RspCode: ipnCodeSuccess, Message: "Confirm Success"}
}
