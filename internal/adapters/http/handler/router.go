package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/ogurasousui/codex-contact-directory/internal/adapters/http/middleware"
	"github.com/ogurasousui/codex-contact-directory/internal/core/ingest"
)

// RouterConfig はルーター構築に必要な依存と設定です。
type RouterConfig struct {
	Employees      EmployeeQuerier
	Ingester       ingest.Ingester
	APIKey         string
	MaxUploadBytes int64
	CORSOrigins    []string
	RequestTimeout time.Duration
	Ready          func(context.Context) error
}

// NewRouter は HTTP ルーターを構築します。
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", middleware.APIKeyHeader},
			ExposedHeaders: []string{"X-Batch-Id"},
		}).Handler)
	}

	r.Get("/healthz", HealthCheck(cfg.Ready))

	employees := NewEmployeeHandler(cfg.Employees, cfg.Ingester, cfg.MaxUploadBytes)
	r.Route("/api/employee", func(api chi.Router) {
		api.Use(middleware.APIKeyAuth(cfg.APIKey))
		api.Get("/", employees.List)
		api.Post("/", employees.Create)
		api.Get("/{name}", employees.FindByName)
	})

	return r
}
