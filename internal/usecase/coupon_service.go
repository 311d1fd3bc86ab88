package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/domain"
)

type CouponService struct {
	Repo CouponRepo
	Now  func() time.Time
}

type CreateCouponInput struct {
	Code          string              `json:"code" validate:"required,max=64"`
	Active        *bool               `json:"active"`
	DiscountType  domain.DiscountType `json:"discountType" validate:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal     `json:"discountValue"`
	MaxDiscount   decimal.NullDecimal `json:"maxDiscount"`
	MinOrderValue decimal.Decimal     `json:"minOrderValue"`
	UsageLimit    *int                `json:"usageLimit" validate:"omitempty,min=1"`
	ExpiresAt     time.Time           `json:"expiresAt" validate:"required"`
}

func (s *CouponService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Validate returns the discount code grants userID on orderValue. It has no
// side effects; Redeem records the use.
func (s *CouponService) Validate(ctx context.Context, code string, orderValue decimal.Decimal, userID string) (decimal.Decimal, error) {
	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return decimal.Zero, domain.ErrValidation("code required")
	}
	if orderValue.IsNegative() {
		return decimal.Zero, domain.ErrValidation("orderValue must be non-negative")
	}
	c, err := s.Repo.GetCoupon(ctx, code)
	if err != nil {
		var nf domain.ErrNotFound
		if errors.As(err, &nf) {
			return decimal.Zero, domain.ErrInvalidCoupon(code)
		}
		return decimal.Zero, err
	}
	return c.Check(orderValue, userID, s.now())
}

func (s *CouponService) Redeem(ctx context.Context, code, userID string) error {
	return s.Repo.RedeemCoupon(ctx, domain.NormalizeCouponCode(code), userID, s.now())
}

func (s *CouponService) Create(ctx context.Context, actor domain.Principal, in CreateCouponInput) (*domain.Coupon, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden("admin only")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if !in.DiscountValue.IsPositive() {
		return nil, domain.ErrValidation("discountValue must be positive")
	}
	if in.DiscountType == domain.DiscountPercentage && in.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return nil, domain.ErrValidation("percentage discount must be at most 100")
	}
	if in.MinOrderValue.IsNegative() {
		return nil, domain.ErrValidation("minOrderValue must be non-negative")
	}
	if in.MaxDiscount.Valid && !in.MaxDiscount.Decimal.IsPositive() {
		return nil, domain.ErrValidation("maxDiscount must be positive")
	}
	now := s.now()
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	c := &domain.Coupon{
		Code:          domain.NormalizeCouponCode(in.Code),
		Active:        active,
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue,
		MaxDiscount:   in.MaxDiscount,
		MinOrderValue: in.MinOrderValue,
		UsageLimit:    in.UsageLimit,
		ExpiresAt:     in.ExpiresAt.UTC(),
		UsedBy:        []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Repo.CreateCoupon(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CouponService) List(ctx context.Context, actor domain.Principal) ([]domain.Coupon, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden("admin only")
	}
	return s.Repo.ListCoupons(ctx)
}
