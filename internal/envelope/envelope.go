// Package envelope writes every API response as {status, data, amount?, errors?}.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chrischeks/order-management-API/internal/validation"
)

type Status string

const (
	StatusSuccess            Status = "SUCCESS"
	StatusCreated            Status = "CREATED"
	StatusSuccessNoContent   Status = "SUCCESS_NO_CONTENT"
	StatusFailedValidation   Status = "FAILED_VALIDATION"
	StatusUnauthorized       Status = "UNAUTHORIZED"
	StatusNotFound           Status = "NOT_FOUND"
	StatusConflict           Status = "CONFLICT"
	StatusUnprocessableEntry Status = "UNPROCESSABLE_ENTRY"
	StatusPreconditionFailed Status = "PRECONDITION_FAILED"
	StatusError              Status = "ERROR"
)

func (s Status) HTTPStatus() int {
	switch s {
	case StatusSuccess:
		return http.StatusOK
	case StatusCreated:
		return http.StatusCreated
	case StatusSuccessNoContent:
		return http.StatusNoContent
	case StatusFailedValidation:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusUnprocessableEntry:
		return http.StatusUnprocessableEntity
	case StatusPreconditionFailed:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

type Response struct {
	Status Status            `json:"status"`
	Data   any               `json:"data,omitempty"`
	Amount *float64          `json:"amount,omitempty"`
	Errors validation.Errors `json:"errors,omitempty"`
}

func New(status Status, data any) Response {
	return Response{Status: status, Data: data}
}

func (r Response) WithAmount(amount float64) Response {
	r.Amount = &amount
	return r
}

func (r Response) WithErrors(errs validation.Errors) Response {
	r.Errors = errs
	return r
}

type message struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func Message(status Status, text string) Response {
	return New(status, message{Message: text})
}

const systemErrorMsg = "Sorry your request could not be completed at the moment"

// HandlerFunc is the shape of every API handler: it produces a response or fails.
type HandlerFunc func(r *http.Request) (Response, error)

type Writer struct {
	logger *slog.Logger
	debug  bool
}

// NewWriter returns the boundary used by all handlers. In debug mode error
// details are attached to ERROR responses.
func NewWriter(logger *slog.Logger, debug bool) *Writer {
	return &Writer{logger: logger, debug: debug}
}

// Wrap converts a HandlerFunc into an http.HandlerFunc. Panics and unclassified
// errors become ERROR responses so a single request can never take the process down.
func (wr *Writer) Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := wr.call(h, r)
		if err != nil {
			resp = wr.fromError(r, err)
		}
		wr.Write(w, resp)
	}
}

func (wr *Writer) call(h HandlerFunc, r *http.Request) (resp Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h(r)
}

func (wr *Writer) fromError(r *http.Request, err error) Response {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return New(StatusFailedValidation, verrs)
	}

	wr.logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	body := message{Message: systemErrorMsg}
	if wr.debug {
		body.Detail = err.Error()
	}
	return New(StatusError, body)
}

func (wr *Writer) Write(w http.ResponseWriter, resp Response) {
	code := resp.Status.HTTPStatus()
	if code == http.StatusNoContent {
		w.WriteHeader(code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		wr.logger.Error("failed to encode response", "error", err)
	}
}
