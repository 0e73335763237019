package handler

import (
	"encoding/json"
	"net/http"

	"techshop/internal/model"
	"techshop/internal/service"
	"techshop/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxProofUploadBytes caps the multipart body for proof uploads.
const maxProofUploadBytes = 10 << 20

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	orders       service.OrderService
	status       service.StatusService
	cancellation service.CancellationService
	proofs       storage.ProofStore
	logger       zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(
	orders service.OrderService,
	status service.StatusService,
	cancellation service.CancellationService,
	proofs storage.ProofStore,
	logger zerolog.Logger,
) *OrderHandler {
	return &OrderHandler{
		orders:       orders,
		status:       status,
		cancellation: cancellation,
		proofs:       proofs,
		logger:       logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders requests.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	req.Normalize()

	summary, err := h.orders.Create(r.Context(), &req, callerID(r))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

// CreateWithProof handles POST /api/orders/with-payment-image requests.
// The multipart body carries the order JSON in the "order" field and the
// proof-of-transfer image in the "image" field. The order is created first;
// a failed image upload does not unwind it.
func (h *OrderHandler) CreateWithProof(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProofUploadBytes)
	if err := r.ParseMultipartForm(maxProofUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body", h.logger)
		return
	}

	var req model.CreateOrderRequest
	if err := json.Unmarshal([]byte(r.FormValue("order")), &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid order payload", h.logger)
		return
	}
	req.Normalize()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "payment image is required", h.logger)
		return
	}
	defer file.Close()

	summary, err := h.orders.Create(r.Context(), &req, callerID(r))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	contentType := header.Header.Get("Content-Type")
	key, err := h.proofs.Save(r.Context(), summary.Order.Code, contentType, file)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("order_code", summary.Order.Code).
			Msg("failed to store payment proof, order kept")
	} else if err := h.orders.AttachPaymentProof(r.Context(), summary.Order.ID, key); err != nil {
		h.logger.Error().
			Err(err).
			Str("order_code", summary.Order.Code).
			Msg("failed to attach payment proof, order kept")
	}

	writeJSON(w, http.StatusCreated, summary)
}

// GetByID handles GET /api/orders/{orderId} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(r.PathValue("orderId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID format", h.logger)
		return
	}

	order, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Status handles GET /api/orders/status/{orderCode} requests. This is the
// unauthenticated polling endpoint used after a gateway redirect.
func (h *OrderHandler) Status(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("orderCode")
	if code == "" {
		writeError(w, http.StatusBadRequest, "order code is required", h.logger)
		return
	}

	view, err := h.orders.StatusByCode(r.Context(), code)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

type updateStatusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// UpdateStatus handles PUT /api/orders/{orderId}/status requests (admin).
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(r.PathValue("orderId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID format", h.logger)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	order, err := h.status.Transition(r.Context(), orderID, req.Status)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /api/orders/{orderId}/cancel requests. The caller is
// identified by the X-User-ID header and must own the order.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(r.PathValue("orderId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID format", h.logger)
		return
	}

	caller := callerID(r)
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "caller identity is required", h.logger)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	order, err := h.cancellation.Cancel(r.Context(), orderID, *caller, req.Reason)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

type confirmPaymentRequest struct {
	VerifiedBy string `json:"verifiedBy"`
}

// ConfirmPayment handles POST /api/orders/{orderId}/confirm-payment
// requests (admin). Confirming an already-paid order is a no-op.
func (h *OrderHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(r.PathValue("orderId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID format", h.logger)
		return
	}

	var req confirmPaymentRequest
	if r.Body != nil {
		// The body is optional; a bare POST confirms without a verifier name.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	order, err := h.orders.ConfirmPayment(r.Context(), orderID, req.VerifiedBy)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// callerID extracts the authenticated account from the X-User-ID header,
// or nil for guest traffic.
func callerID(r *http.Request) *uuid.UUID {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
