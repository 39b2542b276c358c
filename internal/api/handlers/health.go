package handlers

import (
	"net/http"

	"github.com/cloo-solutions/agentrag/internal/api"
)

type HealthResponse struct {
	Status      string `json:"status"`
	Provider    string `json:"provider"`
	Environment string `json:"environment"`
}

// Health reports liveness together with the configured model provider.
func Health(provider, environment string) http.HandlerFunc {
	resp := HealthResponse{Status: "ok", Provider: provider, Environment: environment}
	return func(w http.ResponseWriter, r *http.Request) {
		api.JSON(w, http.StatusOK, resp)
	}
}
