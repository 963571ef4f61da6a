package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/avelichko/accounts-service/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter собирает маршруты сервиса и цепочку middleware.
// ready — признак готовности для /healthz (nil означает «всегда готов»).
func NewRouter(svc *service.Service, base *slog.Logger, timeout time.Duration, ready func() bool) http.Handler {
	h := NewAccountHandler(svc)

	r := chi.NewRouter()
	r.Use(Recover(base))
	r.Use(Logging(base))
	r.Use(Metrics())
	r.Use(Timeout(timeout))

	r.Route("/api/account", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(Auth(svc))
			r.Get("/me", h.Me)
		})
	})

	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if ready == nil || ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
