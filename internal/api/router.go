package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mj-member/mjmember/internal/api/middleware"
	"github.com/mj-member/mjmember/internal/handlers"
	"github.com/mj-member/mjmember/internal/inbox"
	"github.com/mj-member/mjmember/internal/store"
)

// maxBodyBytes leaves room for JSON escaping of a 5000 byte message body.
const maxBodyBytes = 16 * 1024

// Options configures the router.
type Options struct {
	Limits    handlers.Limits
	RateLimit middleware.RateLimiterConfig
	Parallel  bool // run inbox target queries concurrently
}

// NewRouter creates and configures the HTTP router. redisStore may be nil,
// which disables rate limiting and unread count caching.
func NewRouter(logger zerolog.Logger, ds store.DataStore, redisStore *store.RedisStore, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(redisStore.Client(), logger, opts.RateLimit)
	r.Use(limiter.Middleware)

	// The contact form is embedded on the public site.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.MemberHeader},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	limits := opts.Limits
	if limits.MaxLimit == 0 {
		limits = handlers.DefaultLimits()
	}

	agg := inbox.NewAggregator(ds, logger, inbox.WithParallelQueries(opts.Parallel))
	h := handlers.NewHandler(ds, redisStore, agg, logger, limits)
	auth := middleware.NewAuthMiddleware(ds)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/api", h.Root)
	r.Get("/health", h.Health)
	r.With(auth.OptionalAuth).Post("/contact", h.Contact)

	// Authenticated routes (require member API key)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/me", h.Me)
		r.Get("/messages", h.ListMessages)
		r.Get("/messages/{id}", h.GetMessage)
		r.Post("/messages/{id}/read", h.MarkRead)
		r.Get("/notifications/unread", h.UnreadCount)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireModerator)

			r.Get("/stats", h.Stats)
			r.Put("/messages/{id}/status", h.UpdateStatus)
			r.Put("/messages/{id}/assign", h.AssignMessage)
		})
	})

	return r
}
