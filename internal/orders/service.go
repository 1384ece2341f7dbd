package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/chrischeks/order-management-API/internal/auth"
	"github.com/chrischeks/order-management-API/internal/config"
	"github.com/chrischeks/order-management-API/internal/domain"
	"github.com/chrischeks/order-management-API/internal/validation"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidPayoutView = errors.New("payouts are only listed for Completed or Closed orders")
)

const sweepBatchSize = 100

type Store interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	Save(ctx context.Context, order *domain.Order) error
	List(ctx context.Context, filter Filter) ([]domain.Order, error)
	CompleteDue(ctx context.Context, now time.Time, limit int, payoutDate func(time.Time) time.Time) ([]domain.Order, error)
}

type ReferralVerifier interface {
	VerifyReferral(token string) (auth.Identity, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Settings are the pricing and scheduling values the lifecycle depends on.
type Settings struct {
	Pricing            config.Pricing
	ReferralPercentage decimal.Decimal
	DueTime            time.Duration
	PayoutWeekday      time.Weekday
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Pricing:            cfg.Pricing,
		ReferralPercentage: cfg.ReferralPercentage,
		DueTime:            cfg.DueTime,
		PayoutWeekday:      cfg.PayoutWeekday,
	}
}

// Payout is a list of orders with the sum of their referral amounts.
type Payout struct {
	Orders []domain.Order
	Total  decimal.Decimal
}

type Service struct {
	store     Store
	validator *validation.Validator
	tokens    ReferralVerifier
	publisher Publisher
	settings  Settings
	logger    *slog.Logger
	now       func() time.Time

	created   metric.Int64Counter
	completed metric.Int64Counter
}

// NewService wires the lifecycle. publisher may be nil when no broker is configured.
func NewService(store Store, v *validation.Validator, tokens ReferralVerifier, publisher Publisher, settings Settings, logger *slog.Logger) (*Service, error) {
	meter := otel.Meter("orders")
	created, err := meter.Int64Counter("orders.created", metric.WithDescription("Orders created"))
	if err != nil {
		return nil, err
	}
	completed, err := meter.Int64Counter("orders.completed", metric.WithDescription("Orders completed by the sweeper"))
	if err != nil {
		return nil, err
	}

	return &Service{
		store:     store,
		validator: v,
		tokens:    tokens,
		publisher: publisher,
		settings:  settings,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		created:   created,
		completed: completed,
	}, nil
}

// Create validates and stores a new Pending order. A referral token that does
// not verify is reported in the returned warnings but does not block creation;
// any other failing field does.
func (s *Service) Create(ctx context.Context, in OrderInput) (*domain.Order, validation.Errors, error) {
	fieldErrs := validation.Merge(s.validator.Struct(in), in.decodeErrs)

	var (
		warnings   validation.Errors
		referralID *string
	)
	if in.UserToken != "" {
		id, err := s.tokens.VerifyReferral(in.UserToken)
		if err != nil {
			s.logger.Info("referral token rejected", "error", err)
			warnings = append(warnings, validation.FieldError{
				Property:    "userToken",
				Constraints: map[string]string{"invalid": "userToken must be a valid token"},
				Value:       in.UserToken,
			})
		} else {
			referralID = &id.UserID
		}
	}

	if len(fieldErrs) > 0 {
		return nil, nil, append(fieldErrs, warnings...)
	}

	now := s.now()
	order := &domain.Order{
		TrxRef:     NewTrxRef(now),
		Secret:     s.price(in),
		ReferralID: referralID,
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
	}

	if err := s.store.Create(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("create order: %w", err)
	}

	s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("product_type", order.Secret.ProductType)))
	s.publish(ctx, domain.OrderEventCreated, order)
	s.logger.Info("order created", "order_id", order.ID, "trx_ref", order.TrxRef)
	return order, warnings, nil
}

// Update overwrites the editable fields of an order and moves it to the
// requested status.
func (s *Service) Update(ctx context.Context, caller auth.Identity, id string, in UpdateInput) (*domain.Order, error) {
	if verrs := validation.Merge(s.validator.Struct(in), in.decodeErrs); len(verrs) > 0 {
		return nil, verrs
	}

	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if order == nil {
		return nil, ErrNotFound
	}

	previous := order.Status
	if !previous.CanTransitionTo(in.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, previous, in.Status)
	}

	now := s.now()
	secret := s.price(in.OrderInput)
	secret.PaymentData = order.Secret.PaymentData
	order.Secret = secret
	order.Status = in.Status
	order.LastUpdatedAt = &now

	switch {
	case in.Status == domain.OrderStatusDelivered && previous != domain.OrderStatusDelivered:
		due := now.Add(s.settings.DueTime)
		order.DeliveredAt = &now
		order.ExpectedTransitionAt = &due
	case in.Status != domain.OrderStatusDelivered:
		order.ExpectedTransitionAt = nil
	}

	if err := s.store.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("save order %s: %w", id, err)
	}

	s.logger.Info("order updated", "order_id", order.ID, "from", previous, "to", order.Status, "updated_by", caller.UserID)
	return order, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if order == nil {
		return nil, ErrNotFound
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]domain.Order, error) {
	orders, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Payouts lists Completed or Closed orders, optionally for a single referrer,
// with the sum of their referral amounts.
func (s *Service) Payouts(ctx context.Context, filter Filter) (Payout, error) {
	if filter.Status != domain.OrderStatusCompleted && filter.Status != domain.OrderStatusClosed {
		return Payout{}, ErrInvalidPayoutView
	}

	orders, err := s.List(ctx, filter)
	if err != nil {
		return Payout{}, err
	}

	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Secret.ReferralAmount)
	}
	return Payout{Orders: orders, Total: total}, nil
}

// CompleteDue completes every Delivered order whose transition time has passed
// and reports how many were moved.
func (s *Service) CompleteDue(ctx context.Context) (int, error) {
	weekday := s.settings.PayoutWeekday
	payoutDate := func(from time.Time) time.Time { return NextPayoutDate(from, weekday) }

	total := 0
	for {
		completed, err := s.store.CompleteDue(ctx, s.now(), sweepBatchSize, payoutDate)
		if err != nil {
			return total, fmt.Errorf("complete due orders: %w", err)
		}

		for i := range completed {
			order := &completed[i]
			s.publish(ctx, domain.OrderEventCompleted, order)
			s.logger.Info("order completed", "order_id", order.ID, "expected_payout_date", order.ExpectedPayoutDate)
		}
		s.completed.Add(ctx, int64(len(completed)))
		total += len(completed)

		if len(completed) < sweepBatchSize {
			return total, nil
		}
	}
}

// Publish emits a lifecycle event for order. Failures are logged, never returned.
func (s *Service) Publish(ctx context.Context, eventType domain.OrderEventType, order *domain.Order) {
	s.publish(ctx, eventType, order)
}

func (s *Service) publish(ctx context.Context, eventType domain.OrderEventType, order *domain.Order) {
	if s.publisher == nil {
		return
	}
	event := domain.NewOrderEvent(eventType, order, s.now())
	if err := s.publisher.Publish(ctx, order.ID, event); err != nil {
		s.logger.Error("failed to publish order event", "error", err, "order_id", order.ID, "type", eventType)
	}
}

func (s *Service) price(in OrderInput) domain.Secret {
	unitCost, _ := s.settings.Pricing.UnitCost(in.ProductType)
	amount := unitCost.Mul(decimal.NewFromInt(int64(in.NumberOfItems)))

	return domain.Secret{
		ProductName:    in.ProductName,
		ProductType:    in.ProductType,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		PhoneNumber:    in.PhoneNumber,
		Email:          in.Email,
		Address:        in.Address,
		NumberOfItems:  in.NumberOfItems,
		UnitCost:       unitCost,
		Amount:         amount,
		ReferralAmount: amount.Mul(s.settings.ReferralPercentage),
		State:          in.State,
		City:           in.City,
	}
}
