package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	Code          string              `json:"code"`
	Active        bool                `json:"active"`
	DiscountType  DiscountType        `json:"discountType"`
	DiscountValue decimal.Decimal     `json:"discountValue"`
	MaxDiscount   decimal.NullDecimal `json:"maxDiscount"`
	MinOrderValue decimal.Decimal     `json:"minOrderValue"`
	UsageLimit    *int                `json:"usageLimit,omitempty"`
	ExpiresAt     time.Time           `json:"expiresAt"`
	UsedBy        []string            `json:"usedBy"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c *Coupon) UsedByUser(userID string) bool {
	for _, u := range c.UsedBy {
		if u == userID {
			return true
		}
	}
	return false
}

func (c *Coupon) LimitReached() bool {
	return c.UsageLimit != nil && len(c.UsedBy) >= *c.UsageLimit
}

// Redeemable reports why userID may not redeem the coupon at now, if at all.
func (c *Coupon) Redeemable(userID string, now time.Time) error {
	if !c.Active {
		return ErrInvalidCoupon(c.Code)
	}
	if now.After(c.ExpiresAt) {
		return ErrCouponExpired(c.Code)
	}
	if c.LimitReached() {
		return ErrUsageLimitReached(c.Code)
	}
	if c.UsedByUser(userID) {
		return ErrAlreadyUsed(c.Code)
	}
	return nil
}

// Check runs the redemption rules in order and returns the discount the
// coupon grants on orderValue.
func (c *Coupon) Check(orderValue decimal.Decimal, userID string, now time.Time) (decimal.Decimal, error) {
	if err := c.Redeemable(userID, now); err != nil {
		return decimal.Zero, err
	}
	if orderValue.LessThan(c.MinOrderValue) {
		return decimal.Zero, ErrBelowMinimum(c.MinOrderValue.String())
	}
	return c.Discount(orderValue), nil
}

func (c *Coupon) Discount(orderValue decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case DiscountPercentage:
		d := orderValue.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
		if c.MaxDiscount.Valid && d.GreaterThan(c.MaxDiscount.Decimal) {
			d = c.MaxDiscount.Decimal
		}
		return d.Round(MoneyScale)
	default:
		return c.DiscountValue
	}
}
