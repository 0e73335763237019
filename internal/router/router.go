package router

import (
	"net/http"

	"techshop/internal/handler"
	"techshop/internal/metrics"
	"techshop/internal/middleware"

	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
// Admin-only routes sit behind API key auth; customer and gateway callback
// routes are open.
func New(
	orderHandler *handler.OrderHandler,
	paymentHandler *handler.PaymentHandler,
	serverMetrics *metrics.ServerMetrics,
	apiKey string,
	logger zerolog.Logger,
) http.Handler {
	mux := http.NewServeMux()
	admin := middleware.APIKeyAuth(apiKey, logger)

	// Health check endpoint (no authentication required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	mux.Handle("GET /metrics", metrics.Handler())

	// Customer order routes
	mux.HandleFunc("POST /api/orders", orderHandler.Create)
	mux.HandleFunc("POST /api/orders/with-payment-image", orderHandler.CreateWithProof)
	mux.HandleFunc("GET /api/orders/status/{orderCode}", orderHandler.Status)
	mux.HandleFunc("POST /api/orders/{orderId}/cancel", orderHandler.Cancel)

	// Admin order routes
	mux.Handle("GET /api/orders/{orderId}", admin(http.HandlerFunc(orderHandler.GetByID)))
	mux.Handle("PUT /api/orders/{orderId}/status", admin(http.HandlerFunc(orderHandler.UpdateStatus)))
	mux.Handle("POST /api/orders/{orderId}/confirm-payment", admin(http.HandlerFunc(orderHandler.ConfirmPayment)))

	// Payment gateway routes. The return and IPN endpoints are called by the
	// customer's browser and the gateway respectively and cannot carry keys.
	mux.HandleFunc("POST /api/payment/create_payment_url", paymentHandler.CreatePaymentURL)
	mux.HandleFunc("GET /api/payment/vnpay_return", paymentHandler.Return)
	mux.HandleFunc("GET /api/payment/vnpay_ipn", paymentHandler.IPN)
	mux.HandleFunc("GET /api/payment/verify", paymentHandler.Verify)

	// Apply middleware in order: Recovery -> Logging -> Metrics -> CORS
	var h http.Handler = mux
	h = middleware.CORS(h)
	h = middleware.Metrics(serverMetrics)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.Recovery(logger)(h)

	return h
}
