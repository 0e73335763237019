package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"

	"techshop/internal/payment"

	"github.com/rs/zerolog"
)

// PaymentService is the payment surface the handler depends on. Satisfied
// by *payment.Service.
type PaymentService interface {
	CreatePaymentURL(ctx context.Context, orderCode, clientIP, bankCode string) (string, error)
	HandleReturn(ctx context.Context, params url.Values) (*payment.ReturnResult, error)
	HandleIPN(ctx context.Context, params url.Values) payment.IPNResponse
}

// PaymentHandler handles gateway payment HTTP requests.
type PaymentHandler struct {
	payments PaymentService
	logger   zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(payments PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger.With().Str("handler", "payment").Logger(),
	}
}

type createPaymentURLRequest struct {
	OrderCode string `json:"orderCode"`
	BankCode  string `json:"bankCode,omitempty"`
}

type createPaymentURLResponse struct {
	PaymentURL string `json:"paymentUrl"`
}

// CreatePaymentURL handles POST /api/payment/create_payment_url requests.
func (h *PaymentHandler) CreatePaymentURL(w http.ResponseWriter, r *http.Request) {
	var req createPaymentURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if req.OrderCode == "" {
		writeError(w, http.StatusBadRequest, "order code is required", h.logger)
		return
	}

	paymentURL, err := h.payments.CreatePaymentURL(r.Context(), req.OrderCode, clientIP(r), req.BankCode)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, createPaymentURLResponse{PaymentURL: paymentURL})
}

// Return handles GET /api/payment/vnpay_return requests, the synchronous
// browser redirect. It verifies the signature and reports the outcome but
// never mutates order state; the IPN is authoritative.
func (h *PaymentHandler) Return(w http.ResponseWriter, r *http.Request) {
	result, err := h.payments.HandleReturn(r.Context(), r.URL.Query())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// IPN handles GET /api/payment/vnpay_ipn requests, the asynchronous
// server-to-server notification. The response is always 200 with a gateway
// acknowledgement code so the gateway stops retrying.
func (h *PaymentHandler) IPN(w http.ResponseWriter, r *http.Request) {
	resp := h.payments.HandleIPN(r.Context(), r.URL.Query())
	writeJSON(w, http.StatusOK, resp)
}

// Verify handles GET /api/payment/verify requests: a client-facing
// signature check over arbitrary callback parameters.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	result, err := h.payments.HandleReturn(r.Context(), r.URL.Query())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// clientIP extracts the originating address, preferring the first entry of
// X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
