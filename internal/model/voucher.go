package model

import "time"

// Voucher is a discount code with a usage cap and a validity window.
// Points-redeemable vouchers may be used at most once per account.
type Voucher struct {
	Code             string    `json:"code" db:"code"`
	Percent          int       `json:"percent" db:"percent"`
	MaxUses          int       `json:"maxUses" db:"max_uses"`
	Used             int       `json:"used" db:"used"`
	ValidFrom        time.Time `json:"validFrom" db:"valid_from"`
	ValidUntil       time.Time `json:"validUntil" db:"valid_until"`
	PointsRedeemable bool      `json:"pointsRedeemable" db:"points_redeemable"`
}

// Active reports whether the voucher is inside its validity window and has
// uses remaining.
func (v *Voucher) Active(now time.Time) bool {
	if now.Before(v.ValidFrom) || now.After(v.ValidUntil) {
		return false
	}
	return v.Used < v.MaxUses
}
