package model

import "strings"

// CreateOrderRequest is the wire payload for order creation. Older clients
// send points to redeem as "usePoints"; both spellings are accepted and
// folded into one value by Normalize before any business logic runs.
type CreateOrderRequest struct {
	Items           []CartLine      `json:"items"`
	GuestContact    *GuestContact   `json:"guestContact,omitempty"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	VoucherCode     string          `json:"voucherCode,omitempty"`
	PointsToRedeem  int64           `json:"pointsToRedeem,omitempty"`
	UsePoints       int64           `json:"usePoints,omitempty"` // legacy alias of pointsToRedeem
	BankCode        string          `json:"bankCode,omitempty"`
}

// CartLine is one requested line of a cart.
type CartLine struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

// Normalize folds alternate field spellings and trims free-text input.
// It must be called once at the HTTP boundary.
func (r *CreateOrderRequest) Normalize() {
	if r.PointsToRedeem == 0 && r.UsePoints > 0 {
		r.PointsToRedeem = r.UsePoints
	}
	r.UsePoints = 0
	r.VoucherCode = strings.ToUpper(strings.TrimSpace(r.VoucherCode))
	if r.GuestContact != nil {
		r.GuestContact.Email = strings.ToLower(strings.TrimSpace(r.GuestContact.Email))
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = PaymentCOD
	}
}

// Validate checks the request shape. Stock and voucher checks happen later
// against live data; this only rejects structurally bad input.
func (r *CreateOrderRequest) Validate() error {
	if len(r.Items) == 0 {
		return ErrEmptyCart
	}
	for _, line := range r.Items {
		if line.ProductID == "" || line.VariantID == "" {
			return NewDomainError(ErrCodeMissingField, "Cart line is missing a product or variant reference")
		}
		if line.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	if r.ShippingAddress.FullName == "" || r.ShippingAddress.Line1 == "" || r.ShippingAddress.City == "" {
		return NewDomainError(ErrCodeMissingField, "Shipping address requires full name, street line and city")
	}
	if r.PointsToRedeem < 0 {
		return NewDomainError(ErrCodeInvalidQuantity, "Points to redeem cannot be negative")
	}
	switch r.PaymentMethod {
	case PaymentCOD, PaymentBankTransfer, PaymentVNPay:
	default:
		return NewDomainError(ErrCodeMissingField, "Unknown payment method")
	}
	return nil
}

// OrderSummary is the creation response payload.
type OrderSummary struct {
	Success bool                `json:"success"`
	Order   *Order              `json:"order"`
	Loyalty LoyaltyPointsRecord `json:"loyalty"`
}

// OrderStatusView is the unauthenticated polling projection of an order.
type OrderStatusView struct {
	Status     OrderStatus `json:"status"`
	IsPaid     bool        `json:"isPaid"`
	PaidAt     *string     `json:"paidAt,omitempty"`
	TotalPrice int64       `json:"totalPrice"`
}
