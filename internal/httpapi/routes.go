package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney-draft-backend/internal/hub"
	"github.com/DoyleJ11/tourney-draft-backend/internal/metrics"
	"github.com/DoyleJ11/tourney-draft-backend/internal/telemetry"
	"github.com/DoyleJ11/tourney-draft-backend/internal/ws"
)

type RouteOptions struct {
	Showcase       *telemetry.ShowcaseCache // nil when telemetry is off
	OriginPatterns []string
	Log            *zap.Logger
}

func SetupRoutes(h *hub.Hub, opts RouteOptions) http.Handler {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(requestLogger(log))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.Handler(h, log, opts.OriginPatterns))
	r.Get("/showcase/{beatmapID}", GetShowcaseSlot(opts.Showcase, log))

	r.Route("/matches", func(r chi.Router) {
		r.Post("/", CreateMatch(h, log))
		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", GetMatch(h))
			r.Get("/pool", GetPool(h))
			r.Put("/round", SetRound(h))
			r.Post("/commands", PostCommand(h))
			r.Post("/current", SetCurrent(h))
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)))
		})
	}
}
