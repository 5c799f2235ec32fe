package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// RouterConfig controls which routes NewRouter mounts
type RouterConfig struct {
	Service   simpleasset.Service
	Logger    *slog.Logger
	JWTSecret string              // enables /api/v1/auth and protects /api/v1/assets
	Gatherer  prometheus.Gatherer // enables /metrics
	TokenTTL  time.Duration

	// MaxBodyBytes bounds request bodies; DefaultMaxBodyBytes when zero
	MaxBodyBytes int64
}

// NewRouter builds the HTTP surface of the service
func NewRouter(cfg RouterConfig) http.Handler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(RequestSizeLimit(maxBody))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	assets := NewAssetsHandler(cfg.Service, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTSecret == "" {
			r.Mount("/assets", assets.Routes())
			return
		}

		tokenAuth := NewTokenAuth(cfg.JWTSecret)
		r.Mount("/auth", NewAuthHandler(tokenAuth, cfg.TokenTTL).Routes())
		r.Group(func(r chi.Router) {
			r.Use(RequireToken(tokenAuth)...)
			r.Mount("/assets", assets.Routes())
		})
	})

	return r
}
