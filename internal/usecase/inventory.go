package usecase

import (
	"context"

	"storefront-backend/internal/domain"
)

// Inventory is the only writer of Product.SoldCount.
type Inventory struct {
	Products ProductRepo
}

func (i *Inventory) Increase(ctx context.Context, productID string, amount int) error {
	if amount < 0 {
		return domain.ErrValidation("amount must be non-negative")
	}
	return i.Products.AdjustSoldCount(ctx, productID, amount)
}

// Decrease subtracts amount; the counter never drops below zero.
func (i *Inventory) Decrease(ctx context.Context, productID string, amount int) error {
	if amount < 0 {
		return domain.ErrValidation("amount must be non-negative")
	}
	return i.Products.AdjustSoldCount(ctx, productID, -amount)
}

func (i *Inventory) apply(ctx context.Context, productID string, delta int) error {
	switch {
	case delta > 0:
		return i.Increase(ctx, productID, delta)
	case delta < 0:
		return i.Decrease(ctx, productID, -delta)
	}
	return nil
}
