package domain

import "time"

type OrderEventType string

const (
	OrderEventCreated   OrderEventType = "order.created"
	OrderEventPaid      OrderEventType = "order.paid"
	OrderEventCompleted OrderEventType = "order.completed"
)

// OrderEvent is published on every lifecycle change. It never carries secret fields.
type OrderEvent struct {
	Type       OrderEventType `json:"type"`
	OrderID    string         `json:"order_id"`
	TrxRef     string         `json:"trx_ref"`
	Status     OrderStatus    `json:"status"`
	ReferralID string         `json:"referral_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

func NewOrderEvent(eventType OrderEventType, order *Order, at time.Time) OrderEvent {
	event := OrderEvent{
		Type:      eventType,
		OrderID:   order.ID,
		TrxRef:    order.TrxRef,
		Status:    order.Status,
		Timestamp: at,
	}
	if order.ReferralID != nil {
		event.ReferralID = *order.ReferralID
	}
	return event
}

func (e OrderEvent) EventType() string {
	return string(e.Type)
}
