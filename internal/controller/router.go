package controller

import (
	"time"

	"github.com/dsamarin/gatepay/internal/infrastructure/config"
	"github.com/dsamarin/gatepay/internal/infrastructure/observability"
	customMW "github.com/dsamarin/gatepay/internal/middleware"
	"github.com/dsamarin/gatepay/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Workflow    *service.PaymentWorkflow
	Metrics     *observability.Metrics
	Server      config.ServerConfig
	Payment     config.PaymentConfig
	JWTSecret   string
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
		AllowedOrigins:   deps.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: deps.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	paymentH := NewPaymentController(deps.Workflow, deps.Metrics, deps.Payment.SessionTTL)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/payments", func(r chi.Router) {
		r.Use(customMW.OptionalAuth(deps.JWTSecret))

		rateLimited := customMW.RateLimit(deps.Server.RateLimitPerMin)

		// Gateways deliver callbacks as GET or POST depending on the
		// protocol; every route accepts both. Notify stays outside the
		// rate limit so gateway retries are never dropped.
		r.With(rateLimited).HandleFunc("/start/{orderID}", paymentH.Start)
		r.With(rateLimited).HandleFunc("/return", paymentH.Return)
		r.HandleFunc("/notify", paymentH.Notify)
		r.With(rateLimited).HandleFunc("/cancel", paymentH.Cancel)
	})

	return r
}
