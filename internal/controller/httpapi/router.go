package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/creator_pipeline/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig параметры роутера
type RouterConfig struct {
	JWTSecret         string
	AllowedOrigins    []string
	BookingRatePerMin int
}

// NewRouter собирает HTTP API
func NewRouter(cfg RouterConfig, svc Services, activity ActivityTracker, metricsReg *metrics.Registry, logger *zap.Logger) http.Handler {
	h := NewHandler(svc, activity, logger)
	limiter := NewRateLimiter(cfg.BookingRatePerMin)

	r := chi.NewRouter()

	// global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogging(logger))
	if metricsReg != nil {
		r.Use(Metrics(metricsReg))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(metricsReg.Gatherer(), promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// заявку подаёт ещё не зарегистрированный пользователь
		r.With(limiter.Middleware).Post("/applications", h.SubmitApplication)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.JWTSecret, activity))

			r.Get("/session", h.Session)
			r.Post("/session/logout", h.Logout)
			r.Post("/session/telegram-code", h.TelegramCode)

			r.Post("/applications/{id}/review", h.ReviewApplication)
			r.Post("/applications/{id}/notes", h.UpdateApplicationNotes)

			r.Get("/managers", h.ListManagers)
			r.Route("/managers/{id}", func(r chi.Router) {
				r.Get("/slots", h.ManagerSlots)
				r.Get("/rules", h.ListRules)
				r.Post("/rules", h.CreateRule)
				r.Delete("/rules/{ruleID}", h.DeleteRule)
			})

			r.Route("/creators/{id}", func(r chi.Router) {
				r.Get("/open-slots", h.OpenSlots)
				r.Get("/stages", h.Stages)
				r.Get("/access", h.Access)
				r.Post("/access", h.GrantAccess)
				r.Post("/manager", h.AssignManager)
				r.Post("/sections/{n}", h.CompleteSection)
				r.Post("/contract/sign", h.SignContract)
			})

			r.Route("/meetings", func(r chi.Router) {
				r.With(limiter.Middleware).Post("/", h.BookMeeting)
				r.Route("/{id}", func(r chi.Router) {
					r.With(limiter.Middleware).Post("/reschedule", h.RequestReschedule)
					r.Post("/reschedule/decision", h.DecideReschedule)
					r.Post("/confirm", h.ConfirmMeeting())
					r.Post("/cancel", h.CancelMeeting())
					r.Post("/complete", h.CompleteMeeting())
				})
			})
		})
	})

	return r
}
