package domain

// TransitionTable maps a current status to the statuses it may move to.
type TransitionTable map[OrderStatus][]OrderStatus

func (t TransitionTable) Allows(from, to OrderStatus) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AdminTransitions is the policy applied to administrator status updates.
// Administrators may set any known status from any status, including
// re-setting the current one and skipping stages.
var AdminTransitions = TransitionTable{
	OrderPending:    OrderStatuses,
	OrderProcessing: OrderStatuses,
	OrderShipped:    OrderStatuses,
	OrderDelivered:  OrderStatuses,
	OrderCancelled:  OrderStatuses,
}

// StrictTransitions follows the forward-only lifecycle. Swap it in for
// AdminTransitions to forbid skipped stages.
var StrictTransitions = TransitionTable{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderCancelled},
}

// StockEffect is the soldCount delta an admin transition causes.
//
// Entering cancelled releases the units. A COD order that goes straight from
// pending to delivered is counted then; every other sale was counted at
// creation.
func StockEffect(o *Order, from, to OrderStatus) int {
	if from == to {
		return 0
	}
	switch {
	case to == OrderCancelled:
		return -o.Quantity
	case from == OrderPending && to == OrderDelivered && o.PaymentMethod == PaymentCOD:
		return o.Quantity
	}
	return 0
}
