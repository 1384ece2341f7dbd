package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/chrischeks/order-management-API/internal/domain"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnsupportedEvent = errors.New("unsupported webhook event")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrUnknownReference = errors.New("no pending order for reference")
	ErrAmountMismatch   = errors.New("charged amount does not match order amount")
	ErrPersistence      = errors.New("could not record payment")
)

const chargeSuccess = "charge.success"

var minorUnits = decimal.NewFromInt(100)

type OrderStore interface {
	GetByTrxRef(ctx context.Context, trxRef string, status domain.OrderStatus) (*domain.Order, error)
	Save(ctx context.Context, order *domain.Order) error
}

// EventSink receives lifecycle notifications for orders that were paid.
type EventSink interface {
	Publish(ctx context.Context, eventType domain.OrderEventType, order *domain.Order)
}

type webhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type chargeData struct {
	Reference string      `json:"reference"`
	Amount    json.Number `json:"amount"`
}

// Verifier authenticates Paystack webhooks and marks the matching order Paid.
type Verifier struct {
	store    OrderStore
	events   EventSink
	secret   string
	logger   *slog.Logger
	now      func() time.Time
	outcomes metric.Int64Counter
}

func NewVerifier(store OrderStore, events EventSink, secret string, logger *slog.Logger) (*Verifier, error) {
	outcomes, err := otel.Meter("payment").Int64Counter("payment.webhook.events",
		metric.WithDescription("Webhook deliveries by outcome"))
	if err != nil {
		return nil, err
	}
	return &Verifier{
		store:    store,
		events:   events,
		secret:   secret,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		outcomes: outcomes,
	}, nil
}

// ReceiveEvent verifies one webhook delivery. Every failure leaves the order
// untouched. Replays find no Pending order and fail with ErrUnknownReference.
func (v *Verifier) ReceiveEvent(ctx context.Context, body []byte, signature string) error {
	err := v.receive(ctx, body, signature)
	v.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
	return err
}

func (v *Verifier) receive(ctx context.Context, body []byte, signature string) error {
	if !VerifySignature(body, signature, v.secret) {
		v.logger.Warn("webhook rejected: signature mismatch")
		return ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Event != chargeSuccess {
		v.logger.Info("webhook ignored", "event", event.Event)
		return fmt.Errorf("%w: %q", ErrUnsupportedEvent, event.Event)
	}

	var data chargeData
	dec := json.NewDecoder(bytes.NewReader(event.Data))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	charged, err := decimal.NewFromString(data.Amount.String())
	if err != nil {
		return fmt.Errorf("%w: amount %q", ErrMalformedEvent, data.Amount)
	}

	order, err := v.store.GetByTrxRef(ctx, data.Reference, domain.OrderStatusPending)
	if err != nil {
		v.logger.Error("webhook order lookup failed", "error", err, "trx_ref", data.Reference)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if order == nil {
		v.logger.Warn("webhook rejected: no pending order", "trx_ref", data.Reference)
		return fmt.Errorf("%w: %s", ErrUnknownReference, data.Reference)
	}

	expected := order.Secret.Amount.Mul(minorUnits)
	if !charged.Equal(expected) {
		v.logger.Warn("webhook rejected: amount mismatch",
			"trx_ref", data.Reference, "charged", charged.String(), "expected", expected.String())
		return fmt.Errorf("%w: charged %s, expected %s", ErrAmountMismatch, charged, expected)
	}

	now := v.now()
	order.PaymentVerifiedDate = &now
	order.Secret.PaymentData = append(json.RawMessage(nil), event.Data...)
	order.Status = domain.OrderStatusPaid

	if err := v.store.Save(ctx, order); err != nil {
		v.logger.Error("failed to record payment", "error", err, "order_id", order.ID)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	v.events.Publish(ctx, domain.OrderEventPaid, order)
	v.logger.Info("payment verified", "order_id", order.ID, "trx_ref", order.TrxRef)
	return nil
}

// VerifyPaidOrder reports whether the reference belongs to a Paid order.
func (v *Verifier) VerifyPaidOrder(ctx context.Context, trxRef string) (bool, error) {
	order, err := v.store.GetByTrxRef(ctx, trxRef, domain.OrderStatusPaid)
	if err != nil {
		return false, fmt.Errorf("get paid order %s: %w", trxRef, err)
	}
	return order != nil, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "paid"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrUnsupportedEvent):
		return "unsupported_event"
	case errors.Is(err, ErrMalformedEvent):
		return "malformed"
	case errors.Is(err, ErrUnknownReference):
		return "unknown_reference"
	case errors.Is(err, ErrAmountMismatch):
		return "amount_mismatch"
	default:
		return "persistence_error"
	}
}
