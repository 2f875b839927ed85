// File: internal/infra/web/server.go
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"purchase-entitlement-service/internal/infra/logging"
	"purchase-entitlement-service/internal/infra/redis"
	"purchase-entitlement-service/internal/usecase"
)

// verifyRateLimit bounds the polling loop clients run while waiting for a
// webhook to land.
const (
	verifyRateLimit  = 30
	verifyRateWindow = time.Minute
)

type Server struct {
	pipeline      usecase.WebhookPipeline
	verifier      usecase.AccessVerifier
	profiles      usecase.ProfileViewer
	mercadopago   MercadoPagoDeps
	caktoSecret   string
	caktoPlans    map[string]string
	limiter       *redis.RateLimiter
	tokens        *TokenManager
	allowedOrigin string
	dev           bool
	log           *zerolog.Logger
}

func NewServer(
	pipeline usecase.WebhookPipeline,
	verifier usecase.AccessVerifier,
	profiles usecase.ProfileViewer,
	mercadopago MercadoPagoDeps,
	caktoSecret string,
	caktoPlans map[string]string,
	limiter *redis.RateLimiter,
	tokens *TokenManager,
	allowedOrigin string,
	dev bool,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		pipeline:      pipeline,
		verifier:      verifier,
		profiles:      profiles,
		mercadopago:   mercadopago,
		caktoSecret:   caktoSecret,
		caktoPlans:    caktoPlans,
		limiter:       limiter,
		tokens:        tokens,
		allowedOrigin: allowedOrigin,
		dev:           dev,
		log:           logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(traceContext)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/mercadopago", s.handleMercadoPagoWebhook)
		r.Post("/webhooks/cakto", s.handleCaktoWebhook)
		r.Post("/access/verify", s.handleVerifyAccess)
		r.Get("/profile/subscription", s.handleSubscriptionView)
	})

	return r
}

// traceContext carries the chi request id into the logging context, so every
// log line a handler or usecase emits can be correlated to one delivery.
func traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = logging.WithTraceID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cors answers pre-flight requests with an empty 200 and stamps permissive
// cross-origin headers on everything else.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.allowedOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
