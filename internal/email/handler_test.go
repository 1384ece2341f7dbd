package email

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sent struct{ to, subject, body string }

type fakeSender struct {
	sent []sent
	err  error
}

func (f *fakeSender) Send(to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{to, subject, body})
	return nil
}

func TestHandler_HandleSend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	send := func(h *Handler, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.HandleSend(rec, httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(body)))
		return rec
	}

	t.Run("relays the message", func(t *testing.T) {
		sender := &fakeSender{}
		rec := send(NewHandler(sender, logger), `{"to":"ops@example.com","subject":"New order","body":"hello"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"sent"}`, rec.Body.String())
		assert.Equal(t, []sent{{"ops@example.com", "New order", "hello"}}, sender.sent)
	})

	t.Run("rejects invalid requests", func(t *testing.T) {
		sender := &fakeSender{}
		h := NewHandler(sender, logger)

		assert.Equal(t, http.StatusBadRequest, send(h, `{`).Code)

		rec := send(h, `{"to":"not-an-address","subject":"","body":"x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "isEmail")
		assert.Contains(t, rec.Body.String(), "isNotEmpty")
		assert.Empty(t, sender.sent)
	})

	t.Run("relay failure", func(t *testing.T) {
		rec := send(NewHandler(&fakeSender{err: errors.New("dial tcp: refused")}, logger), `{"to":"ops@example.com","subject":"s","body":"b"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}
