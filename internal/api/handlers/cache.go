package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/agentrag/internal/api"
	"github.com/cloo-solutions/agentrag/internal/domain"
)

type CacheAdmin interface {
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (domain.CacheStats, error)
}

type CacheHandler struct {
	cache CacheAdmin
}

func NewCacheHandler(cache CacheAdmin) *CacheHandler {
	return &CacheHandler{cache: cache}
}

func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(r.Context()); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}
