package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/chrischeks/order-management-API/internal/envelope"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

const notAuthorized = "You are not authorized to access this resource"

type Middleware struct {
	verifier *TokenVerifier
	writer   *envelope.Writer
	logger   *slog.Logger
}

func NewMiddleware(verifier *TokenVerifier, writer *envelope.Writer, logger *slog.Logger) *Middleware {
	return &Middleware{verifier: verifier, writer: writer, logger: logger}
}

// RequireBearer admits requests carrying a valid identity-service token.
func (m *Middleware) RequireBearer(next http.Handler) http.Handler {
	return m.require(next, m.verifier.VerifyBearer)
}

// RequireReferral admits requests carrying a valid referral token.
func (m *Middleware) RequireReferral(next http.Handler) http.Handler {
	return m.require(next, m.verifier.VerifyReferral)
}

func (m *Middleware) require(next http.Handler, verify func(string) (Identity, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			m.writer.Write(w, envelope.Message(envelope.StatusUnauthorized, notAuthorized))
			return
		}

		id, err := verify(token)
		if err != nil {
			m.logger.Info("rejected token", "error", err, "path", r.URL.Path)
			m.writer.Write(w, envelope.Message(envelope.StatusUnauthorized, notAuthorized))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
