package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrischeks/order-management-API/internal/domain"
	"github.com/chrischeks/order-management-API/internal/envelope"
)

const testSecret = "sk_test_webhook"

type memoryStore struct {
	mu      sync.Mutex
	orders  map[string]domain.Order
	saveErr error
	saves   int
}

func (m *memoryStore) GetByTrxRef(_ context.Context, trxRef string, status domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.TrxRef == trxRef && o.Status == status {
			return &o, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) Save(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.orders[order.ID] = *order
	return nil
}

func (m *memoryStore) get(id string) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

type recordingSink struct {
	events []domain.OrderEventType
}

func (s *recordingSink) Publish(_ context.Context, eventType domain.OrderEventType, _ *domain.Order) {
	s.events = append(s.events, eventType)
}

type fixture struct {
	verifier *Verifier
	store    *memoryStore
	sink     *recordingSink
	at       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &memoryStore{orders: map[string]domain.Order{
		"order-1": {
			ID:     "order-1",
			TrxRef: "wb.qwert-12-341767225600000",
			Status: domain.OrderStatusPending,
			Secret: domain.Secret{Amount: decimal.RequireFromString("75000.50")},
		},
	}}
	sink := &recordingSink{}
	v, err := NewVerifier(store, sink, testSecret, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	at := time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return at }
	return &fixture{verifier: v, store: store, sink: sink, at: at}
}

func chargeBody(event, reference, amount string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"data":{"id":302961,"status":"success","reference":%q,"amount":%s,"currency":"NGN"}}`,
		event, reference, amount))
}

func TestVerifier_ReceiveEvent(t *testing.T) {
	ctx := context.Background()
	const ref = "wb.qwert-12-341767225600000"

	t.Run("marks the order paid", func(t *testing.T) {
		f := newFixture(t)
		body := chargeBody("charge.success", ref, "7500050")

		require.NoError(t, f.verifier.ReceiveEvent(ctx, body, Sign(body, testSecret)))

		got := f.store.get("order-1")
		assert.Equal(t, domain.OrderStatusPaid, got.Status)
		require.NotNil(t, got.PaymentVerifiedDate)
		assert.Equal(t, f.at, *got.PaymentVerifiedDate)
		var data map[string]any
		require.NoError(t, json.Unmarshal(got.Secret.PaymentData, &data))
		assert.Equal(t, ref, data["reference"])
		assert.Equal(t, "NGN", data["currency"])
		assert.Equal(t, []domain.OrderEventType{domain.OrderEventPaid}, f.sink.events)
	})

	t.Run("replay is rejected and changes nothing", func(t *testing.T) {
		f := newFixture(t)
		body := chargeBody("charge.success", ref, "7500050")
		sig := Sign(body, testSecret)
		require.NoError(t, f.verifier.ReceiveEvent(ctx, body, sig))
		first := f.store.get("order-1")

		err := f.verifier.ReceiveEvent(ctx, body, sig)

		assert.ErrorIs(t, err, ErrUnknownReference)
		assert.Equal(t, first, f.store.get("order-1"))
		assert.Equal(t, 1, f.store.saves)
		assert.Len(t, f.sink.events, 1)
	})

	tests := []struct {
		name    string
		body    []byte
		sign    func(body []byte) string
		wantErr error
	}{
		{
			name:    "bad signature on a valid payload",
			body:    chargeBody("charge.success", ref, "7500050"),
			sign:    func(body []byte) string { return Sign(body, "wrong") },
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "missing signature",
			body:    chargeBody("charge.success", ref, "7500050"),
			sign:    func([]byte) string { return "" },
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "other event type",
			body:    chargeBody("transfer.success", ref, "7500050"),
			wantErr: ErrUnsupportedEvent,
		},
		{
			name:    "unknown reference",
			body:    chargeBody("charge.success", "wb.nope", "7500050"),
			wantErr: ErrUnknownReference,
		},
		{
			name:    "amount too low",
			body:    chargeBody("charge.success", ref, "7500049"),
			wantErr: ErrAmountMismatch,
		},
		{
			name:    "amount in major units",
			body:    chargeBody("charge.success", ref, "75000.5"),
			wantErr: ErrAmountMismatch,
		},
		{
			name:    "amount not a number",
			body:    chargeBody("charge.success", ref, `"lots"`),
			wantErr: ErrMalformedEvent,
		},
		{
			name:    "not json",
			body:    []byte(`event=charge.success`),
			wantErr: ErrMalformedEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sign := tt.sign
			if sign == nil {
				sign = func(body []byte) string { return Sign(body, testSecret) }
			}
			before := f.store.get("order-1")

			err := f.verifier.ReceiveEvent(ctx, tt.body, sign(tt.body))

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, f.store.get("order-1"))
			assert.Zero(t, f.store.saves)
			assert.Empty(t, f.sink.events)
		})
	}

	t.Run("save failure", func(t *testing.T) {
		f := newFixture(t)
		f.store.saveErr = errors.New("connection reset")
		body := chargeBody("charge.success", ref, "7500050")

		err := f.verifier.ReceiveEvent(ctx, body, Sign(body, testSecret))

		assert.ErrorIs(t, err, ErrPersistence)
		assert.Equal(t, domain.OrderStatusPending, f.store.get("order-1").Status)
		assert.Empty(t, f.sink.events)
	})
}

func TestVerifier_VerifyPaidOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ref := "wb.qwert-12-341767225600000"

	paid, err := f.verifier.VerifyPaidOrder(ctx, ref)
	require.NoError(t, err)
	assert.False(t, paid, "pending orders are not paid")

	body := chargeBody("charge.success", ref, "7500050")
	require.NoError(t, f.verifier.ReceiveEvent(ctx, body, Sign(body, testSecret)))

	paid, err = f.verifier.VerifyPaidOrder(ctx, ref)
	require.NoError(t, err)
	assert.True(t, paid)
}

func TestHandler(t *testing.T) {
	ref := "wb.qwert-12-341767225600000"
	writer := envelope.NewWriter(slog.New(slog.NewTextHandler(io.Discard, nil)), false)

	post := func(h *Handler, body []byte, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/event/new", strings.NewReader(string(body)))
		req.Header.Set("X-Paystack-Signature", sig)
		rec := httptest.NewRecorder()
		writer.Wrap(h.HandleEvent).ServeHTTP(rec, req)
		return rec
	}
	verify := func(h *Handler, trxRef string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/event/verify/"+trxRef, nil)
		req.SetPathValue("trxref", trxRef)
		rec := httptest.NewRecorder()
		writer.Wrap(h.HandleVerify).ServeHTTP(rec, req)
		return rec
	}

	f := newFixture(t)
	h := NewHandler(f.verifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
	body := chargeBody("charge.success", ref, "7500050")

	assert.Equal(t, http.StatusNotFound, verify(h, ref).Code)

	rec := post(h, body, Sign(body, "forged"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"FAILED_VALIDATION"}`, rec.Body.String())

	rec = post(h, body, Sign(body, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"SUCCESS"}`, rec.Body.String())

	rec = post(h, body, Sign(body, testSecret))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "replay")
	assert.JSONEq(t, `{"status":"FAILED_VALIDATION"}`, rec.Body.String())

	rec = verify(h, ref)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
