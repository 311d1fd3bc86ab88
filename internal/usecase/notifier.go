package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"time"

	"github.com/sirupsen/logrus"

	"storefront-backend/internal/domain"
)

// notifier performs the best-effort side effects of order transitions.
// Nothing it does is allowed to fail the operation that triggered it.
type notifier struct {
	notifications NotificationRepo
	outbox        Outbox
	mailer        Mailer
	events        EventPublisher
	log           logrus.FieldLogger
	now           func() time.Time
}

type orderEvent struct {
	Type           string             `json:"type"`
	OrderID        string             `json:"orderId"`
	OrderNumber    string             `json:"orderNumber"`
	ProductID      string             `json:"productId"`
	BuyerID        string             `json:"buyerId"`
	Quantity       int                `json:"quantity"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previousStatus,omitempty"`
	FinalPrice     string             `json:"finalPrice"`
	At             time.Time          `json:"at"`
}

func (n *notifier) record(ctx context.Context, nt *domain.Notification) {
	if n.notifications == nil {
		return
	}
	nt.ID = newID()
	nt.CreatedAt = n.now()
	if err := n.notifications.CreateNotification(ctx, nt); err != nil {
		n.log.WithError(err).WithField("type", nt.Type).Warn("notification write failed")
	}
}

func (n *notifier) email(to, subject, body string) {
	if n.outbox == nil || n.mailer == nil || to == "" {
		return
	}
	ok := n.outbox.Enqueue("email:"+subject, func(ctx context.Context) error {
		return n.mailer.Send(ctx, to, subject, body)
	})
	if !ok {
		n.log.WithField("to", to).Warn("email dropped, outbox unavailable")
	}
}

func (n *notifier) event(ev orderEvent) {
	if n.outbox == nil || n.events == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		n.log.WithError(err).Warn("encode order event")
		return
	}
	ok := n.outbox.Enqueue("event:"+ev.Type, func(ctx context.Context) error {
		return n.events.Publish(ctx, ev.OrderID, payload)
	})
	if !ok {
		n.log.WithField("order", ev.OrderNumber).Warn("event dropped, outbox unavailable")
	}
}

func (n *notifier) orderPlaced(ctx context.Context, o *domain.Order) {
	n.record(ctx, &domain.Notification{
		Type:      domain.NotifyNewOrder,
		Title:     "New order received",
		Message:   fmt.Sprintf("Order %s placed for %d item(s), total %s", o.OrderNumber, o.Quantity, o.FinalPrice.StringFixed(2)),
		Priority:  domain.PriorityHigh,
		RelatedID: o.ID,
		Metadata: map[string]any{
			"orderNumber":   o.OrderNumber,
			"buyerId":       o.BuyerID,
			"productId":     o.ProductID,
			"paymentMethod": string(o.PaymentMethod),
			"finalPrice":    o.FinalPrice.String(),
		},
	})
	subject := "Order confirmed: " + o.OrderNumber
	body := fmt.Sprintf("<p>Hi %s,</p><p>Thanks for your order <b>%s</b>. %s</p>%s",
		html.EscapeString(o.ShippingAddress.Name), o.OrderNumber,
		"We'll let you know when it moves along.", orderSummary(o))
	n.email(recipient(o), subject, body)
	n.event(newOrderEvent("order.created", o, ""))
}

func (n *notifier) statusChanged(ctx context.Context, o *domain.Order, from domain.OrderStatus) {
	n.record(ctx, &domain.Notification{
		Type:      domain.NotifyOrderStatus,
		Title:     "Order status updated",
		Message:   fmt.Sprintf("Order %s changed from %s to %s", o.OrderNumber, from, o.Status),
		Priority:  statusPriority(o.Status),
		RelatedID: o.ID,
		Metadata: map[string]any{
			"orderNumber":    o.OrderNumber,
			"previousStatus": string(from),
			"newStatus":      string(o.Status),
		},
	})
	subject, lead := statusCopy(o.Status)
	body := fmt.Sprintf("<p>Hi %s,</p><p>%s</p>%s", html.EscapeString(o.ShippingAddress.Name), lead, orderSummary(o))
	n.email(recipient(o), subject+": "+o.OrderNumber, body)
	n.event(newOrderEvent("order.status_changed", o, from))
}

func statusCopy(s domain.OrderStatus) (string, string) {
	switch s {
	case domain.OrderProcessing:
		return "Your order is being processed", "We've started preparing your order."
	case domain.OrderShipped:
		return "Your order has shipped", "Your order is on its way."
	case domain.OrderDelivered:
		return "Your order has been delivered", "Your order was delivered. Enjoy!"
	case domain.OrderCancelled:
		return "Your order has been cancelled", "Your order was cancelled. If you paid online, a refund will follow."
	default:
		return "Your order is pending", "Your order is waiting to be processed."
	}
}

func statusPriority(s domain.OrderStatus) domain.Priority {
	switch s {
	case domain.OrderCancelled:
		return domain.PriorityHigh
	case domain.OrderDelivered:
		return domain.PriorityLow
	}
	return domain.PriorityMedium
}

func recipient(o *domain.Order) string {
	if o.ShippingAddress.Email != "" {
		return o.ShippingAddress.Email
	}
	if o.Buyer != nil {
		return o.Buyer.Email
	}
	return ""
}

func orderSummary(o *domain.Order) string {
	name := o.ProductID
	if o.Product != nil {
		name = o.Product.Name
	}
	return fmt.Sprintf("<table><tr><td>Product</td><td>%s</td></tr><tr><td>Quantity</td><td>%d</td></tr><tr><td>Discount</td><td>%s</td></tr><tr><td>Total</td><td>%s</td></tr></table>",
		html.EscapeString(name), o.Quantity, o.Discount.StringFixed(2), o.FinalPrice.StringFixed(2))
}

func newOrderEvent(kind string, o *domain.Order, from domain.OrderStatus) orderEvent {
	return orderEvent{
		Type:           kind,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		ProductID:      o.ProductID,
		BuyerID:        o.BuyerID,
		Quantity:       o.Quantity,
		Status:         o.Status,
		PreviousStatus: from,
		FinalPrice:     o.FinalPrice.String(),
		At:             o.UpdatedAt,
	}
}
