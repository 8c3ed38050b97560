package controller

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dawilly/clickpesa/internal/domain/transaction"
	"github.com/dawilly/clickpesa/internal/gateway"
	"github.com/dawilly/clickpesa/internal/infrastructure/config"
	"github.com/dawilly/clickpesa/internal/infrastructure/observability"
	customMW "github.com/dawilly/clickpesa/internal/middleware"
	"github.com/dawilly/clickpesa/internal/service"
)

type RouterDeps struct {
	Pool         *pgxpool.Pool
	RedisClient  *redis.Client
	Collections  gateway.Collections
	Payouts      gateway.Payouts
	Transactions transaction.Repository
	Reconciler   *service.Reconciler
	Metrics      *observability.Metrics
	Config       *config.Config
	Logger       zerolog.Logger
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SignatureHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.Config.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	webhookH := NewWebhookController(deps.Reconciler, deps.Config.Webhook.MaxBodySize, deps.Logger)
	paymentH := NewPaymentController(deps.Collections, deps.Transactions, deps.Config.Gateway.Currency)
	payoutH := NewPayoutController(deps.Payouts, deps.Transactions, deps.Config.Gateway.Currency)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	// Server-to-server callback; exempt from browser-oriented protections.
	r.Post("/clickpesa/callback", webhookH.Callback)

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Config.Server.RateLimit > 0 {
			r.Use(customMW.RateLimit(deps.Config.Server.RateLimit))
		}

		// Payments (collections)
		r.Post("/payments/preview-push", paymentH.PreviewPush)
		r.Post("/payments/push", paymentH.InitiatePush)
		r.Post("/payments/preview-card", paymentH.PreviewCard)
		r.Post("/payments/card", paymentH.InitiateCard)
		r.Get("/payments", paymentH.List)
		r.Get("/payments/{orderReference}", paymentH.Get)
		r.Get("/payments/{orderReference}/status", paymentH.QueryStatus)

		// Payouts (disbursements)
		r.Post("/payouts/preview-mobile", payoutH.PreviewMobile)
		r.Post("/payouts/mobile", payoutH.CreateMobile)
		r.Post("/payouts/preview-bank", payoutH.PreviewBank)
		r.Post("/payouts/bank", payoutH.CreateBank)
		r.Get("/payouts", payoutH.List)
		r.Get("/payouts/{orderReference}", payoutH.Get)
		r.Get("/payouts/{orderReference}/status", payoutH.QueryStatus)
	})

	return r
}
