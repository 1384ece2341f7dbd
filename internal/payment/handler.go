package payment

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/chrischeks/order-management-API/internal/envelope"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	verifier *Verifier
	logger   *slog.Logger
}

func NewHandler(verifier *Verifier, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, logger: logger}
}

// HandleEvent answers every rejected delivery with the same FAILED_VALIDATION
// response; the reason is only logged and counted.
func (h *Handler) HandleEvent(r *http.Request) (envelope.Response, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil || len(body) > maxWebhookBody {
		h.logger.Warn("failed to read webhook body", "error", err, "size", len(body))
		return envelope.New(envelope.StatusFailedValidation, nil), nil
	}

	if err := h.verifier.ReceiveEvent(r.Context(), body, r.Header.Get(SignatureHeader)); err != nil {
		h.logger.Info("webhook delivery rejected", "reason", err)
		return envelope.New(envelope.StatusFailedValidation, nil), nil
	}
	return envelope.New(envelope.StatusSuccess, nil), nil
}

func (h *Handler) HandleVerify(r *http.Request) (envelope.Response, error) {
	paid, err := h.verifier.VerifyPaidOrder(r.Context(), r.PathValue("trxref"))
	if err != nil {
		return envelope.Response{}, err
	}
	if !paid {
		return envelope.New(envelope.StatusNotFound, nil), nil
	}
	return envelope.New(envelope.StatusSuccessNoContent, nil), nil
}
