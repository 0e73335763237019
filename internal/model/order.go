package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipping  OrderStatus = "shipping"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipping, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PaymentMethod tags how an order is (to be) paid.
type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentVNPay        PaymentMethod = "vnpay"
)

// Order represents a durable customer order. Line items are snapshots taken
// at creation time and are never re-read from the catalogue afterwards.
type Order struct {
	ID     uuid.UUID  `json:"id" db:"id"`
	Code   string     `json:"code" db:"code"`
	UserID *uuid.UUID `json:"userId,omitempty" db:"user_id"`

	GuestContact *GuestContact `json:"guestContact,omitempty" db:"guest_contact"`

	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shippingAddress" db:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod" db:"payment_method"`

	// Monetary amounts are whole VND. Total is fixed at creation:
	// Total = SubTotal + Tax + ShippingFee - Discount.Amount.
	SubTotal    int64    `json:"subTotal" db:"sub_total"`
	ShippingFee int64    `json:"shippingFee" db:"shipping_fee"`
	Tax         int64    `json:"tax" db:"tax"`
	Discount    Discount `json:"discount" db:"discount"`
	Total       int64    `json:"total" db:"total"`

	Loyalty LoyaltyPointsRecord `json:"loyalty"`

	Status        OrderStatus    `json:"status" db:"status"`
	StatusHistory []StatusChange `json:"statusHistory"`

	IsPaid        bool          `json:"isPaid" db:"is_paid"`
	PaidAt        *time.Time    `json:"paidAt,omitempty" db:"paid_at"`
	PaymentStatus string        `json:"paymentStatus" db:"payment_status"`
	PaymentProof  *PaymentProof `json:"paymentProof,omitempty" db:"payment_proof"`

	CancelReason *string    `json:"cancelReason,omitempty" db:"cancel_reason"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty" db:"cancelled_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// OrderItem is an immutable line item snapshot.
type OrderItem struct {
	ID        uuid.UUID `json:"-" db:"id"`
	OrderID   uuid.UUID `json:"-" db:"order_id"`
	ProductID string    `json:"productId" db:"product_id"`
	VariantID string    `json:"variantId" db:"variant_id"`
	Name      string    `json:"name" db:"name"`
	Image     string    `json:"image,omitempty" db:"image"`
	UnitPrice int64     `json:"unitPrice" db:"unit_price"`
	Quantity  int       `json:"quantity" db:"quantity"`
}

// StatusChange is one entry of an order's append-only status history.
type StatusChange struct {
	Status    OrderStatus `json:"status" db:"status"`
	ChangedAt time.Time   `json:"changedAt" db:"changed_at"`
}

// Discount describes the voucher applied to an order, if any.
type Discount struct {
	Code    string `json:"code,omitempty"`
	Percent int    `json:"percent,omitempty"`
	Amount  int64  `json:"amount"`
}

// LoyaltyPointsRecord captures the points movement fixed on the order.
type LoyaltyPointsRecord struct {
	PointsUsed   int64 `json:"pointsUsed" db:"points_used"`
	PointsEarned int64 `json:"pointsEarned" db:"points_earned"`
}

// GuestContact is the contact snapshot for orders without a registered
// purchaser, or alongside an auto-provisioned account.
type GuestContact struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ShippingAddress is the delivery address snapshot taken at order time.
type ShippingAddress struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Line1    string `json:"line1"`
	Ward     string `json:"ward,omitempty"`
	District string `json:"district,omitempty"`
	City     string `json:"city"`
}

// PaymentProof references an uploaded proof-of-transfer image and its
// verification trail.
type PaymentProof struct {
	ImageKey   string     `json:"imageKey"`
	UploadedAt time.Time  `json:"uploadedAt"`
	VerifiedBy string     `json:"verifiedBy,omitempty"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
}
