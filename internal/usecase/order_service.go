package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront-backend/internal/domain"
)

type OrderService struct {
	Store     Store
	Inventory *Inventory
	Coupons   *CouponService
	Outbox    Outbox
	Mailer    Mailer
	Events    EventPublisher
	Log       logrus.FieldLogger
	Now       func() time.Time
	// Transitions is the admin status policy; AdminTransitions when nil.
	Transitions domain.TransitionTable
}

type CreateOrderInput struct {
	ProductID       string                 `json:"productId" validate:"required"`
	Quantity        int                    `json:"quantity" validate:"required,min=1"`
	Price           decimal.NullDecimal    `json:"price"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   domain.PaymentMethod   `json:"paymentMethod" validate:"required,oneof=cod online"`
	Notes           string                 `json:"notes" validate:"max=2000"`
	CouponCode      string                 `json:"couponCode" validate:"max=64"`
}

type ShippingPatch struct {
	Name    *string `json:"name" validate:"omitempty,min=1"`
	Street  *string `json:"street" validate:"omitempty,min=1"`
	City    *string `json:"city" validate:"omitempty,min=1"`
	State   *string `json:"state"`
	Zip     *string `json:"zip" validate:"omitempty,min=1"`
	Country *string `json:"country" validate:"omitempty,min=1"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone" validate:"omitempty,min=1"`
}

// UpdateShippingInput is the whole set of buyer-editable fields.
type UpdateShippingInput struct {
	ShippingAddress *ShippingPatch `json:"shippingAddress"`
	Notes           *string        `json:"notes" validate:"omitempty,max=2000"`
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *OrderService) log() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

func (s *OrderService) transitions() domain.TransitionTable {
	if s.Transitions != nil {
		return s.Transitions
	}
	return domain.AdminTransitions
}

func (s *OrderService) notifier() *notifier {
	return &notifier{
		notifications: s.Store,
		outbox:        s.Outbox,
		mailer:        s.Mailer,
		events:        s.Events,
		log:           s.log(),
		now:           s.now,
	}
}

func (s *OrderService) Create(ctx context.Context, buyer domain.Principal, in CreateOrderInput) (*domain.Order, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	product, err := s.Store.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, missingAs(err, "product does not exist")
	}
	user, err := s.Store.GetUser(ctx, buyer.UserID)
	if err != nil {
		return nil, missingAs(err, "buyer does not exist")
	}
	price := product.Price
	if in.Price.Valid {
		price = in.Price.Decimal.Round(domain.MoneyScale)
		if !price.IsPositive() {
			return nil, domain.ErrValidation("price must be positive")
		}
	}

	now := s.now()
	o := &domain.Order{
		ID:              newID(),
		OrderNumber:     newOrderNumber(now),
		ProductID:       product.ID,
		BuyerID:         user.ID,
		Price:           price,
		Quantity:        in.Quantity,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		Notes:           in.Notes,
		Status:          domain.InitialStatus(in.PaymentMethod),
		PlacedAt:        now,
		UpdatedAt:       now,
	}
	code := domain.NormalizeCouponCode(in.CouponCode)

	err = s.Store.Transact(ctx, func(ctx context.Context) error {
		discount := decimal.Zero
		if code != "" {
			d, err := s.Coupons.Validate(ctx, code, o.Subtotal(), user.ID)
			if err != nil {
				return err
			}
			discount = d
			o.CouponCode = code
		}
		o.ApplyDiscount(discount)
		if err := s.Store.CreateOrder(ctx, o); err != nil {
			return err
		}
		if o.CountedAtCreation() {
			if err := s.Inventory.Increase(ctx, o.ProductID, o.Quantity); err != nil {
				return err
			}
		}
		if code != "" {
			return s.Coupons.Redeem(ctx, code, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.populate(ctx, o)
	s.log().WithFields(logrus.Fields{"order": o.OrderNumber, "buyer": o.BuyerID, "status": o.Status}).Info("order placed")
	s.notifier().orderPlaced(ctx, o)
	return o, nil
}

// UpdateStatus is the administrator transition. The state write and the
// soldCount adjustment commit together.
func (s *OrderService) UpdateStatus(ctx context.Context, actor domain.Principal, orderID, status string) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden("admin only")
	}
	to, ok := domain.ParseOrderStatus(status)
	if !ok {
		return nil, domain.ErrInvalidStatus(status)
	}
	var (
		o    *domain.Order
		from domain.OrderStatus
	)
	err := s.Store.Transact(ctx, func(ctx context.Context) error {
		cur, err := s.Store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = cur.Status
		if !s.transitions().Allows(from, to) {
			return domain.ErrInvalidState(fmt.Sprintf("cannot move order from %s to %s", from, to))
		}
		cur.Status = to
		cur.UpdatedAt = s.now()
		if err := s.Store.UpdateOrder(ctx, cur); err != nil {
			return err
		}
		if err := s.Inventory.apply(ctx, cur.ProductID, domain.StockEffect(cur, from, to)); err != nil {
			return err
		}
		o = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.populate(ctx, o)
	s.log().WithFields(logrus.Fields{"order": o.OrderNumber, "from": from, "to": to}).Info("order status updated")
	s.notifier().statusChanged(ctx, o, from)
	return o, nil
}

// CancelOwn lets a buyer cancel their own pending order.
func (s *OrderService) CancelOwn(ctx context.Context, actor domain.Principal, orderID string) (*domain.Order, error) {
	var o *domain.Order
	err := s.Store.Transact(ctx, func(ctx context.Context) error {
		cur, err := s.Store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.BuyerID != actor.UserID {
			return domain.ErrForbidden("you can only cancel your own orders")
		}
		if cur.Status != domain.OrderPending {
			return domain.ErrInvalidState("only pending orders can be cancelled")
		}
		cur.Status = domain.OrderCancelled
		cur.UpdatedAt = s.now()
		if err := s.Store.UpdateOrder(ctx, cur); err != nil {
			return err
		}
		if cur.CountedAtCreation() {
			if err := s.Inventory.Decrease(ctx, cur.ProductID, cur.Quantity); err != nil {
				return err
			}
		}
		o = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.populate(ctx, o)
	s.log().WithField("order", o.OrderNumber).Info("order cancelled by buyer")
	s.notifier().statusChanged(ctx, o, domain.OrderPending)
	return o, nil
}

// UpdateShipping edits the shipping address and notes. No other field can be
// changed here and there is no status guard.
func (s *OrderService) UpdateShipping(ctx context.Context, actor domain.Principal, orderID string, in UpdateShippingInput) (*domain.Order, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var o *domain.Order
	err := s.Store.Transact(ctx, func(ctx context.Context) error {
		cur, err := s.Store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.BuyerID != actor.UserID {
			return domain.ErrForbidden("you can only edit your own orders")
		}
		if p := in.ShippingAddress; p != nil {
			a := &cur.ShippingAddress
			set(&a.Name, p.Name)
			set(&a.Street, p.Street)
			set(&a.City, p.City)
			set(&a.State, p.State)
			set(&a.Zip, p.Zip)
			set(&a.Country, p.Country)
			set(&a.Email, p.Email)
			set(&a.Phone, p.Phone)
		}
		set(&cur.Notes, in.Notes)
		cur.UpdatedAt = s.now()
		if err := s.Store.UpdateOrder(ctx, cur); err != nil {
			return err
		}
		o = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.populate(ctx, o)
	return o, nil
}

// Get returns the order to its buyer or an administrator.
func (s *OrderService) Get(ctx context.Context, actor domain.Principal, orderID string) (*domain.Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != actor.UserID && !actor.IsAdmin() {
		return nil, domain.ErrForbidden("not allowed to view this order")
	}
	s.populate(ctx, o)
	return o, nil
}

func (s *OrderService) ListMine(ctx context.Context, actor domain.Principal) ([]domain.Order, error) {
	return s.list(ctx, actor.UserID)
}

func (s *OrderService) ListAll(ctx context.Context, actor domain.Principal) ([]domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden("admin only")
	}
	return s.list(ctx, "")
}

func (s *OrderService) list(ctx context.Context, buyerID string) ([]domain.Order, error) {
	orders, err := s.Store.ListOrders(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	products := map[string]*domain.Product{}
	for i := range orders {
		id := orders[i].ProductID
		p, ok := products[id]
		if !ok {
			p, _ = s.Store.GetProduct(ctx, id)
			products[id] = p
		}
		orders[i].Product = p
	}
	return orders, nil
}

// populate attaches the product and buyer; missing relations stay nil.
func (s *OrderService) populate(ctx context.Context, o *domain.Order) {
	if p, err := s.Store.GetProduct(ctx, o.ProductID); err == nil {
		o.Product = p
	}
	if u, err := s.Store.GetUser(ctx, o.BuyerID); err == nil {
		o.Buyer = u
	}
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func missingAs(err error, msg string) error {
	var nf domain.ErrNotFound
	if errors.As(err, &nf) {
		return domain.ErrValidation(msg)
	}
	return err
}
