package domain

import "time"

type NotificationType string

const (
	NotifyNewOrder         NotificationType = "new_order"
	NotifyOrderStatus      NotificationType = "order_status"
	NotifyUserRegistration NotificationType = "user_registration"
	NotifySystemAlert      NotificationType = "system_alert"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Priority  Priority         `json:"priority"`
	Read      bool             `json:"read"`
	RelatedID string           `json:"relatedId,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}
