package email

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/chrischeks/order-management-API/internal/validation"
)

type Handler struct {
	sender    Sender
	validator *validation.Validator
	logger    *slog.Logger
}

func NewHandler(sender Sender, logger *slog.Logger) *Handler {
	return &Handler{
		sender:    sender,
		validator: validation.New(),
		logger:    logger,
	}
}

type sendRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required"`
}

type sendResponse struct {
	Status string            `json:"status"`
	Errors validation.Errors `json:"errors,omitempty"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if verrs := h.validator.Struct(req); len(verrs) > 0 {
		h.writeJSON(w, http.StatusBadRequest, sendResponse{Status: "rejected", Errors: verrs})
		return
	}

	if err := h.sender.Send(req.To, req.Subject, req.Body); err != nil {
		h.logger.Error("failed to send email", "error", err, "to", req.To)
		h.writeError(w, http.StatusBadGateway, "email relay unavailable")
		return
	}

	h.logger.Info("email sent", "to", req.To, "subject", req.Subject)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
