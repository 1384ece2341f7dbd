package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrischeks/order-management-API/internal/domain"
	"github.com/chrischeks/order-management-API/internal/messaging"
)

func delivery(t *testing.T, event domain.OrderEvent) messaging.Delivery {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return messaging.Delivery{Key: event.OrderID, EventType: event.EventType(), Payload: payload}
}

func TestNotificationHandler_Handle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	at := time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)

	t.Run("emails the operator", func(t *testing.T) {
		var got map[string]string
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/send", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer emailServer.Close()

		h := NewNotificationHandler(emailServer.URL, "ops@example.com", emailServer.Client(), logger)
		err := h.Handle(context.Background(), delivery(t, domain.OrderEvent{
			Type:       domain.OrderEventCompleted,
			OrderID:    "order-1",
			TrxRef:     "wb.abcde-1-11767225600000",
			Status:     domain.OrderStatusCompleted,
			ReferralID: "ref-1",
			Timestamp:  at,
		}))

		require.NoError(t, err)
		assert.Equal(t, "ops@example.com", got["to"])
		assert.Equal(t, "Order completed: wb.abcde-1-11767225600000", got["subject"])
		assert.Contains(t, got["body"], "Referred by ref-1")
	})

	t.Run("email service failure is returned", func(t *testing.T) {
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer emailServer.Close()

		h := NewNotificationHandler(emailServer.URL, "ops@example.com", emailServer.Client(), logger)
		err := h.Handle(context.Background(), delivery(t, domain.OrderEvent{Type: domain.OrderEventPaid, OrderID: "order-1", Timestamp: at}))

		assert.ErrorContains(t, err, "502")
	})

	t.Run("unknown and undecodable events are skipped", func(t *testing.T) {
		called := false
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer emailServer.Close()

		h := NewNotificationHandler(emailServer.URL, "ops@example.com", emailServer.Client(), logger)
		assert.NoError(t, h.Handle(context.Background(), delivery(t, domain.OrderEvent{Type: "order.archived", OrderID: "order-1"})))
		assert.NoError(t, h.Handle(context.Background(), messaging.Delivery{Payload: []byte("not json")}))
		assert.False(t, called)
	})
}
