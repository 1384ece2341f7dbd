package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPaid      OrderStatus = "Paid"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusClosed    OrderStatus = "Closed"
	OrderStatusDue       OrderStatus = "Due"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusClosed,
	OrderStatusDue,
}

func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// rank orders the linear part of the lifecycle. Markers have no rank.
func (s OrderStatus) rank() int {
	switch s {
	case OrderStatusPending:
		return 0
	case OrderStatusPaid:
		return 1
	case OrderStatusDelivered:
		return 2
	case OrderStatusCompleted:
		return 3
	}
	return -1
}

// CanTransitionTo reports whether a manual update may move an order from s to next.
// Pending -> Paid is reserved for payment verification.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	switch {
	case s == OrderStatusClosed:
		return false
	case next == OrderStatusClosed, next == OrderStatusDue:
		return true
	case s == OrderStatusDue:
		return false
	case next == OrderStatusPaid:
		return false
	}
	return next.rank() >= s.rank()
}

// Secret holds the customer and pricing details that are sealed at rest.
type Secret struct {
	ProductName    string          `json:"productName"`
	ProductType    string          `json:"productType"`
	FirstName      string          `json:"firstName"`
	LastName       string          `json:"lastName"`
	PhoneNumber    string          `json:"phoneNumber"`
	Email          string          `json:"email"`
	Address        string          `json:"address"`
	NumberOfItems  int             `json:"numberOfItems"`
	UnitCost       decimal.Decimal `json:"unitCost"`
	Amount         decimal.Decimal `json:"amount"`
	ReferralAmount decimal.Decimal `json:"referralAmount"`
	State          string          `json:"state"`
	City           string          `json:"city"`
	PaymentData    json.RawMessage `json:"paymentData,omitempty"`
}

// Referrer is the public identity of the user credited with a referral.
type Referrer struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type Order struct {
	ID                   string      `json:"id"`
	TrxRef               string      `json:"trxRef"`
	Secret               Secret      `json:"secret"`
	ReferralID           *string     `json:"referralId"`
	Referrer             *Referrer   `json:"referrer,omitempty"`
	Status               OrderStatus `json:"status"`
	PaymentVerifiedDate  *time.Time  `json:"paymentVerifiedDate,omitempty"`
	CreatedAt            time.Time   `json:"createdAt"`
	LastUpdatedAt        *time.Time  `json:"lastUpdatedAt,omitempty"`
	ExpectedPayoutDate   *time.Time  `json:"expectedPayoutDate,omitempty"`
	DeliveredAt          *time.Time  `json:"deliveredAt,omitempty"`
	ExpectedTransitionAt *time.Time  `json:"expectedTransitionAt,omitempty"`
}
