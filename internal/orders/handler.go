package orders

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/chrischeks/order-management-API/internal/auth"
	"github.com/chrischeks/order-management-API/internal/domain"
	"github.com/chrischeks/order-management-API/internal/envelope"
	"github.com/chrischeks/order-management-API/internal/validation"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

var errInvalidBody = validation.Errors{{
	Property:    "body",
	Constraints: map[string]string{"invalid": validation.ErrMalformedBody.Error()},
}}

func (h *Handler) HandleCreate(r *http.Request) (envelope.Response, error) {
	var in OrderInput
	typeErrs, err := validation.DecodeJSON(r.Body, &in)
	if err != nil {
		return envelope.Response{}, errInvalidBody
	}
	in.decodeErrs = typeErrs

	order, warnings, err := h.service.Create(r.Context(), in)
	if err != nil {
		return envelope.Response{}, err
	}
	return envelope.New(envelope.StatusSuccess, order).WithErrors(warnings), nil
}

func (h *Handler) HandleUpdate(r *http.Request) (envelope.Response, error) {
	var in UpdateInput
	typeErrs, err := validation.DecodeJSON(r.Body, &in)
	if err != nil {
		return envelope.Response{}, errInvalidBody
	}
	in.decodeErrs = typeErrs

	caller, _ := auth.FromContext(r.Context())
	order, err := h.service.Update(r.Context(), caller, r.PathValue("orderId"), in)
	switch {
	case errors.Is(err, ErrNotFound):
		return envelope.Message(envelope.StatusNotFound, "order not found"), nil
	case errors.Is(err, ErrInvalidTransition):
		return envelope.Message(envelope.StatusConflict, err.Error()), nil
	case err != nil:
		return envelope.Response{}, err
	}
	return envelope.New(envelope.StatusSuccess, order), nil
}

func (h *Handler) HandleGet(r *http.Request) (envelope.Response, error) {
	order, err := h.service.Get(r.Context(), r.PathValue("orderId"))
	if errors.Is(err, ErrNotFound) {
		return envelope.Message(envelope.StatusNotFound, "order not found"), nil
	}
	if err != nil {
		return envelope.Response{}, err
	}
	return envelope.New(envelope.StatusSuccess, order), nil
}

// HandleList returns a handler listing orders in status, or all orders when
// status is empty.
func (h *Handler) HandleList(status domain.OrderStatus) envelope.HandlerFunc {
	return func(r *http.Request) (envelope.Response, error) {
		orders, err := h.service.List(r.Context(), Filter{Status: status})
		if err != nil {
			return envelope.Response{}, err
		}
		return envelope.New(envelope.StatusSuccess, orders), nil
	}
}

// HandleTransactions is the global payout view for status.
func (h *Handler) HandleTransactions(status domain.OrderStatus) envelope.HandlerFunc {
	return func(r *http.Request) (envelope.Response, error) {
		return h.payouts(r, Filter{Status: status})
	}
}

// HandlePayouts is the payout view of the referrer named in the path.
func (h *Handler) HandlePayouts(status domain.OrderStatus) envelope.HandlerFunc {
	return func(r *http.Request) (envelope.Response, error) {
		return h.payouts(r, Filter{Status: status, ReferralID: r.PathValue("referralId")})
	}
}

// HandleOwnPayouts serves referrers, who may only read their own payouts.
func (h *Handler) HandleOwnPayouts(status domain.OrderStatus) envelope.HandlerFunc {
	return func(r *http.Request) (envelope.Response, error) {
		referralID := r.PathValue("referralId")
		caller, ok := auth.FromContext(r.Context())
		if !ok || caller.UserID != referralID {
			h.logger.Info("referrer asked for foreign payouts", "caller", caller.UserID, "referral_id", referralID)
			return envelope.Message(envelope.StatusUnauthorized, "You are not authorized to access this resource"), nil
		}
		return h.payouts(r, Filter{Status: status, ReferralID: referralID})
	}
}

func (h *Handler) payouts(r *http.Request, filter Filter) (envelope.Response, error) {
	payout, err := h.service.Payouts(r.Context(), filter)
	if err != nil {
		return envelope.Response{}, err
	}
	return envelope.New(envelope.StatusSuccess, payout.Orders).WithAmount(payout.Total.InexactFloat64()), nil
}
