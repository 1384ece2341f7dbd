package main

import (
	"context"
	"net/http"

	"github.com/chrischeks/order-management-API/internal/auth"
	"github.com/chrischeks/order-management-API/internal/domain"
	"github.com/chrischeks/order-management-API/internal/envelope"
	"github.com/chrischeks/order-management-API/internal/middleware"
	"github.com/chrischeks/order-management-API/internal/orders"
	"github.com/chrischeks/order-management-API/internal/payment"
	"github.com/chrischeks/order-management-API/internal/telemetry"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type routes struct {
	orders   *orders.Handler
	payments *payment.Handler
	guard    *auth.Middleware
	writer   *envelope.Writer

	// limiter guards public order and poll routes. Webhooks are signed and
	// arrive in bursts from few addresses, so they use webhookLimiter.
	limiter        *middleware.RateLimiter
	webhookLimiter *middleware.RateLimiter

	metrics http.Handler
	db      pinger
}

func (rt *routes) route(h envelope.HandlerFunc) http.Handler {
	return telemetry.WithHTTPRoute(rt.writer.Wrap(h))
}

func (rt *routes) mux() *http.ServeMux {
	o, bearer, referral := rt.orders, rt.guard.RequireBearer, rt.guard.RequireReferral

	mux := http.NewServeMux()
	mux.Handle("POST /order", rt.limiter.Limit(rt.route(o.HandleCreate)))
	mux.Handle("PUT /order/{orderId}", bearer(rt.route(o.HandleUpdate)))
	mux.Handle("GET /order/all", bearer(rt.route(o.HandleList(""))))
	mux.Handle("GET /order/due/all", bearer(rt.route(o.HandleList(domain.OrderStatusDue))))
	mux.Handle("GET /order/paid/all", bearer(rt.route(o.HandleList(domain.OrderStatusPaid))))
	mux.Handle("GET /order/{orderId}", bearer(rt.route(o.HandleGet)))
	mux.Handle("GET /order/completed/transactions", bearer(rt.route(o.HandleTransactions(domain.OrderStatusCompleted))))
	mux.Handle("GET /order/closed/transactions", bearer(rt.route(o.HandleTransactions(domain.OrderStatusClosed))))
	mux.Handle("GET /order/payouts/completed/{referralId}", bearer(rt.route(o.HandlePayouts(domain.OrderStatusCompleted))))
	mux.Handle("GET /order/payouts/closed/{referralId}", bearer(rt.route(o.HandlePayouts(domain.OrderStatusClosed))))
	mux.Handle("GET /referral/payouts/completed/{referralId}", referral(rt.route(o.HandleOwnPayouts(domain.OrderStatusCompleted))))
	mux.Handle("GET /referral/payouts/closed/{referralId}", referral(rt.route(o.HandleOwnPayouts(domain.OrderStatusClosed))))
	mux.Handle("POST /event/new", rt.webhookLimiter.Limit(rt.route(rt.payments.HandleEvent)))
	mux.Handle("PATCH /event/verify/{trxref}", rt.limiter.Limit(rt.route(rt.payments.HandleVerify)))
	mux.Handle("GET /metrics", rt.metrics)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := rt.db.PingContext(r.Context()); err != nil {
			rt.writer.Write(w, envelope.Message(envelope.StatusError, "database unreachable"))
			return
		}
		rt.writer.Write(w, envelope.New(envelope.StatusSuccess, map[string]string{"status": "ok"}))
	})
	return mux
}
