package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/chrischeks/order-management-API/internal/auth"
	"github.com/chrischeks/order-management-API/internal/config"
	"github.com/chrischeks/order-management-API/internal/domain"
)

type memoryStore struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	seq    int
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{orders: make(map[string]domain.Order)}
}

func (m *memoryStore) Create(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.seq++
	order.ID = "order-" + strconv.Itoa(m.seq)
	m.orders[order.ID] = *order
	return nil
}

func (m *memoryStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

func (m *memoryStore) Save(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.orders[order.ID]; !ok {
		return ErrNotFound
	}
	m.orders[order.ID] = *order
	return nil
}

func (m *memoryStore) List(_ context.Context, filter Filter) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Order{}
	for _, o := range m.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.ReferralID != "" && (o.ReferralID == nil || *o.ReferralID != filter.ReferralID) {
			continue
		}
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m *memoryStore) CompleteDue(_ context.Context, now time.Time, limit int, payoutDate func(time.Time) time.Time) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var done []domain.Order
	for id, o := range m.orders {
		if len(done) == limit {
			break
		}
		if o.Status != domain.OrderStatusDelivered || o.ExpectedTransitionAt == nil || o.ExpectedTransitionAt.After(now) {
			continue
		}
		payout := payoutDate(*o.DeliveredAt)
		o.Status = domain.OrderStatusCompleted
		o.LastUpdatedAt = &now
		o.ExpectedPayoutDate = &payout
		o.ExpectedTransitionAt = nil
		m.orders[id] = o
		done = append(done, o)
	}
	return done, nil
}

func (m *memoryStore) put(o domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

type stubTokens map[string]string

func (s stubTokens) VerifyReferral(token string) (auth.Identity, error) {
	id, ok := s[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return auth.Identity{UserID: id}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event.(domain.OrderEvent))
	return nil
}

func (p *recordingPublisher) types() []domain.OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.OrderEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

var errStoreDown = errors.New("store down")

func testSettings() Settings {
	return Settings{
		Pricing: config.Pricing{
			"useries": decimal.RequireFromString("25000"),
			"sseries": decimal.RequireFromString("40000.50"),
		},
		ReferralPercentage: decimal.RequireFromString("0.1"),
		DueTime:            time.Hour,
		PayoutWeekday:      time.Wednesday,
	}
}

type fixture struct {
	service   *Service
	store     *memoryStore
	publisher *recordingPublisher
	clock     *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	settings := testSettings()
	v, err := NewValidator([]string{"wattbank"}, settings.Pricing)
	require.NoError(t, err)

	store := newMemoryStore()
	publisher := &recordingPublisher{}
	service, err := NewService(store, v, stubTokens{"good-token": "ref-1"}, publisher, settings, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	clock := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	f := &fixture{service: service, store: store, publisher: publisher, clock: &clock}
	service.now = func() time.Time { return *f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func validInput() OrderInput {
	return OrderInput{
		ProductName:   "wattbank",
		ProductType:   "useries",
		FirstName:     "Ada",
		LastName:      "Obi",
		PhoneNumber:   "08012345678",
		Email:         "ada@example.com",
		Address:       "12 Marina Road",
		NumberOfItems: 3,
		State:         "Lagos",
		City:          "Ikeja",
	}
}
