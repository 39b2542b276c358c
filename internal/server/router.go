package server

import (
	"net/http"

	"github.com/cloo-solutions/agentrag/internal/api/handlers"
	"github.com/cloo-solutions/agentrag/internal/api/middleware"
	"github.com/cloo-solutions/agentrag/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RouterConfig struct {
	QueryHandler    *handlers.QueryHandler
	CacheHandler    *handlers.CacheHandler
	DocumentHandler *handlers.DocumentHandler
	Health          http.HandlerFunc
	Metrics         http.Handler
	Logger          *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Room for one full document plus multipart framing.
	const maxBodyBytes int64 = service.MaxDocumentBytes + 1<<20

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Get("/stream_query", cfg.QueryHandler.Stream)
	r.Post("/query", cfg.QueryHandler.Query)

	r.Route("/cache", func(r chi.Router) {
		r.Delete("/", cfg.CacheHandler.Clear)
		r.Get("/stats", cfg.CacheHandler.Stats)
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", cfg.DocumentHandler.Upload)
		r.Get("/", cfg.DocumentHandler.List)
		r.Delete("/{name}", cfg.DocumentHandler.Delete)
	})
	r.Post("/upload_document", cfg.DocumentHandler.Upload)

	return r
}
