package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/domain"
)

type CatalogService struct {
	Products ProductRepo
	Now      func() time.Time
}

// CreateProductInput has no soldCount; only Inventory writes it.
type CreateProductInput struct {
	Name  string          `json:"name" validate:"required,max=200"`
	Price decimal.Decimal `json:"price"`
}

func (s *CatalogService) Create(ctx context.Context, actor domain.Principal, in CreateProductInput) (*domain.Product, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden("admin only")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	price := in.Price.Round(domain.MoneyScale)
	if !price.IsPositive() {
		return nil, domain.ErrValidation("price must be positive")
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	p := &domain.Product{
		ID:        newID(),
		Name:      in.Name,
		Price:     price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Products.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.Products.GetProduct(ctx, id)
}

func (s *CatalogService) List(ctx context.Context) ([]domain.Product, error) {
	return s.Products.ListProducts(ctx)
}
