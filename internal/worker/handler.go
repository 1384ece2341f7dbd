package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chrischeks/order-management-API/internal/domain"
	"github.com/chrischeks/order-management-API/internal/messaging"
)

// NotificationHandler turns order lifecycle events into operator emails sent
// through the email service.
type NotificationHandler struct {
	emailServiceURL string
	recipient       string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL, recipient string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		recipient:       recipient,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, d messaging.Delivery) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(d.Payload, &event); err != nil {
		h.logger.Error("dropping undecodable event", "error", err, "key", d.Key)
		return nil
	}

	subject, body, ok := describe(event)
	if !ok {
		h.logger.Info("ignoring event", "type", event.Type, "order_id", event.OrderID)
		return nil
	}

	h.logger.Info("processing order event", "type", event.Type, "order_id", event.OrderID)

	if err := h.sendEmail(ctx, subject, body); err != nil {
		h.logger.Error("failed to send notification", "error", err, "order_id", event.OrderID, "type", event.Type)
		return fmt.Errorf("notify %s for order %s: %w", event.Type, event.OrderID, err)
	}
	return nil
}

func describe(event domain.OrderEvent) (subject, body string, ok bool) {
	referral := ""
	if event.ReferralID != "" {
		referral = fmt.Sprintf(" Referred by %s.", event.ReferralID)
	}
	at := event.Timestamp.Format("2006-01-02 15:04 MST")

	switch event.Type {
	case domain.OrderEventCreated:
		return "New order " + event.TrxRef,
			fmt.Sprintf("Order %s (%s) was placed at %s and awaits payment.%s", event.OrderID, event.TrxRef, at, referral), true
	case domain.OrderEventPaid:
		return "Payment received: " + event.TrxRef,
			fmt.Sprintf("Payment for order %s (%s) was verified at %s. It is ready for delivery.", event.OrderID, event.TrxRef, at), true
	case domain.OrderEventCompleted:
		return "Order completed: " + event.TrxRef,
			fmt.Sprintf("Order %s (%s) was completed at %s.%s", event.OrderID, event.TrxRef, at, referral), true
	}
	return "", "", false
}

func (h *NotificationHandler) sendEmail(ctx context.Context, subject, body string) error {
	data, err := json.Marshal(map[string]string{
		"to":      h.recipient,
		"subject": subject,
		"body":    body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
