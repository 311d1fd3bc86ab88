package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/domain"
)

// Transactor runs fn inside one storage transaction. Repo calls made with the
// ctx passed to fn join that transaction.
type Transactor interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
}

type OrderRepo interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrder(ctx context.Context, o *domain.Order) error
	// ListOrders returns orders newest first; an empty buyerID lists all.
	ListOrders(ctx context.Context, buyerID string) ([]domain.Order, error)
	CountOrdersByStatus(ctx context.Context) (map[domain.OrderStatus]int, error)
	DeliveredRevenue(ctx context.Context) (decimal.Decimal, error)
}

type ProductRepo interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CountProducts(ctx context.Context) (int, error)
	// AdjustSoldCount adds delta to the product's soldCount, flooring at zero.
	AdjustSoldCount(ctx context.Context, id string, delta int) error
}

type CouponRepo interface {
	CreateCoupon(ctx context.Context, c *domain.Coupon) error
	GetCoupon(ctx context.Context, code string) (*domain.Coupon, error)
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
	// RedeemCoupon records userID as a redeemer if the coupon is active,
	// unexpired, under its limit and not yet used by userID, as one atomic step.
	RedeemCoupon(ctx context.Context, code, userID string, now time.Time) error
}

type UserRepo interface {
	PutUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	CountUsers(ctx context.Context) (int, error)
}

type NotificationRepo interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, unreadOnly bool) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// Store is everything the services persist.
type Store interface {
	Transactor
	OrderRepo
	ProductRepo
	CouponRepo
	UserRepo
	NotificationRepo
}

// Outbox runs secondary work after the primary operation has committed.
type Outbox interface {
	Enqueue(name string, job func(ctx context.Context) error) bool
}

type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}
