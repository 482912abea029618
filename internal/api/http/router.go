package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shestoi/marketsettle/internal/api/http/middleware"
	"github.com/shestoi/marketsettle/internal/repository"
	platformhealth "github.com/shestoi/marketsettle/platform/health/http"
	platformobservability "github.com/shestoi/marketsettle/platform/observability"
)

const healthCheckTimeout = 2 * time.Second

// NewRouter создаёт и настраивает HTTP роутер Settlement Service.
// health — проверки зависимостей (postgres, redis) для /health
func NewRouter(handler *Handler, sessions repository.SessionRepository, health []platformhealth.Check, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	// Observability: trace context + span на каждый запрос, logger с trace_id в контексте
	router.Use(platformobservability.HTTPMiddleware("settlement", logger))

	// Вебхук аутентифицируется подписью, а не сессией
	router.Post("/webhooks/stripe", handler.PostStripeWebhook)

	router.Group(func(r chi.Router) {
		r.Use(middleware.WithSession(sessions, logger))

		r.Post("/checkout", handler.PostCheckout)
		r.Get("/sellers/me/balance", handler.GetMyBalance)
		r.Post("/sellers/me/onboarding", handler.PostMyOnboarding)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/purchases", handler.GetPurchases)
			r.Post("/purchases/{id}/refund-request", withPurchaseID(handler.PostRefundRequest))
			r.Post("/purchases/{id}/refund", withPurchaseID(handler.PostRefund))
			r.Post("/purchases/{id}/refund-reject", withPurchaseID(handler.PostRefundReject))
		})
	})

	// Health без middleware (не требует сессии)
	router.Get("/health", platformhealth.Handler(healthCheckTimeout, health...))

	return router
}

func withPurchaseID(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r, chi.URLParam(r, "id"))
	}
}
