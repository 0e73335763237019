// Package payment adapts the VNPay gateway: building signed redirect URLs
// and verifying signed callbacks. The adapter never moves stock or points;
// it only flips payment flags and requests the pending→confirmed
// transition.
package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"techshop/internal/config"
	"techshop/internal/model"

	"github.com/rs/zerolog"
)

// Gateway wire constants.
const (
	paramSecureHash     = "vnp_SecureHash"
	paramSecureHashType = "vnp_SecureHashType"

	// ResponseCodeSuccess is the gateway's code for a successful payment.
	ResponseCodeSuccess = "00"

	createDateLayout = "20060102150405"
)

// VNPay clocks run in Indochina time.
var gatewayZone = time.FixedZone("ICT", 7*60*60)

// Gateway signs and verifies VNPay parameter sets. The merchant code and
// shared secret are fixed at construction.
type Gateway struct {
	cfg    config.PaymentConfig
	now    func() time.Time
	logger zerolog.Logger
}

// NewGateway creates a gateway adapter from injected configuration.
func NewGateway(cfg config.PaymentConfig, logger zerolog.Logger) *Gateway {
	return &Gateway{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "vnpay").Logger(),
	}
}

// URLRequest describes one outbound payment redirect.
type URLRequest struct {
	OrderCode string
	Amount    int64 // whole currency units; transmitted scaled by 100
	OrderInfo string
	ClientIP  string
	BankCode  string // optional
}

// BuildPaymentURL assembles the signed redirect URL for the payment page.
func (g *Gateway) BuildPaymentURL(req URLRequest) (string, error) {
	if req.OrderCode == "" {
		return "", model.NewDomainError(model.ErrCodeMissingField, "Order reference is required")
	}
	if req.Amount <= 0 {
		return "", model.NewDomainError(model.ErrCodeInvalidQuantity, "Payment amount must be positive")
	}

	orderInfo := req.OrderInfo
	if orderInfo == "" {
		orderInfo = "Payment for order " + req.OrderCode
	}

	params := url.Values{}
	params.Set("vnp_Version", g.cfg.Version)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", g.cfg.TmnCode)
	params.Set("vnp_Locale", g.cfg.Locale)
	params.Set("vnp_CurrCode", g.cfg.Currency)
	params.Set("vnp_TxnRef", req.OrderCode)
	params.Set("vnp_OrderInfo", orderInfo)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_ReturnUrl", g.cfg.ReturnURL)
	params.Set("vnp_IpAddr", req.ClientIP)
	params.Set("vnp_CreateDate", g.now().In(gatewayZone).Format(createDateLayout))
	if req.BankCode != "" {
		params.Set("vnp_BankCode", req.BankCode)
	}

	signature := g.sign(params)
	params.Set(paramSecureHash, signature)

	return g.cfg.GatewayURL + "?" + params.Encode(), nil
}

// VerifySignature recomputes the HMAC over the received parameters and
// compares it to the received signature in constant time. The signature
// and its type field are excluded from the signed payload.
func (g *Gateway) VerifySignature(received url.Values) error {
	given := received.Get(paramSecureHash)
	if given == "" {
		return model.ErrInvalidSignature
	}

	params := url.Values{}
	for key, values := range received {
		if key == paramSecureHash || key == paramSecureHashType {
			continue
		}
		for _, v := range values {
			params.Add(key, v)
		}
	}

	expected := g.sign(params)

	givenBytes, err := hex.DecodeString(given)
	if err != nil {
		return model.ErrInvalidSignature
	}
	expectedBytes, _ := hex.DecodeString(expected)

	if !hmac.Equal(givenBytes, expectedBytes) {
		g.logger.Warn().
			Str("txn_ref", received.Get("vnp_TxnRef")).
			Msg("signature mismatch on gateway callback")
		return model.ErrInvalidSignature
	}
	return nil
}

// sign computes the hex HMAC-SHA-512 over the URL-encoded parameter string.
// url.Values.Encode sorts keys alphabetically, which is the canonical form
// the gateway expects.
func (g *Gateway) sign(params url.Values) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.HashSecret))
	mac.Write([]byte(params.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseAmount reads the scaled amount parameter back into whole units.
func ParseAmount(received url.Values) (int64, error) {
	raw := received.Get("vnp_Amount")
	scaled, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || scaled%100 != 0 {
		return 0, fmt.Errorf("malformed amount %q", raw)
	}
	return scaled / 100, nil
}
