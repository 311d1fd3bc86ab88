package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var OrderStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
)

type ShippingAddress struct {
	Name    string `json:"name" validate:"required"`
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state"`
	Zip     string `json:"zip" validate:"required"`
	Country string `json:"country" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
}

type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	ProductID       string          `json:"productId"`
	BuyerID         string          `json:"buyerId"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	Discount        decimal.Decimal `json:"discount"`
	FinalPrice      decimal.Decimal `json:"finalPrice"`
	CouponCode      string          `json:"couponCode,omitempty"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Notes           string          `json:"notes"`
	Status          OrderStatus     `json:"status"`
	PlacedAt        time.Time       `json:"placedAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	Product *Product `json:"product,omitempty"`
	Buyer   *User    `json:"buyer,omitempty"`
}

// Subtotal is price times quantity before any discount.
func (o *Order) Subtotal() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

// MoneyScale is the number of decimal places money is stored with.
const MoneyScale = 2

// ApplyDiscount sets Discount, rounded to cents and bounded to [0, subtotal],
// and recomputes FinalPrice.
func (o *Order) ApplyDiscount(d decimal.Decimal) {
	sub := o.Subtotal()
	d = d.Round(MoneyScale)
	if d.IsNegative() {
		d = decimal.Zero
	}
	if d.GreaterThan(sub) {
		d = sub
	}
	o.Discount = d
	o.FinalPrice = sub.Sub(d)
}

// CountedAtCreation reports whether the sale was confirmed when the order was
// placed. COD sales only count once delivered.
func (o *Order) CountedAtCreation() bool {
	return o.PaymentMethod != PaymentCOD
}

// InitialStatus is pending for COD and processing for prepaid orders.
func InitialStatus(m PaymentMethod) OrderStatus {
	if m == PaymentCOD {
		return OrderPending
	}
	return OrderProcessing
}
