package api

import (
	"log/slog"
	"net/http"

	"github.com/pvannier/lumen-api/internal/api/shared"
	"github.com/pvannier/lumen-api/internal/catalog"
	"github.com/pvannier/lumen-api/internal/config"
)

// ModelsHandler serves the upstream model catalog.
type ModelsHandler struct {
	catalog     *catalog.Service
	upstreamCfg config.UpstreamConfig
	logger      *slog.Logger
}

// NewModelsHandler creates a new ModelsHandler.
func NewModelsHandler(cat *catalog.Service, upstreamCfg config.UpstreamConfig, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{
		catalog:     cat,
		upstreamCfg: upstreamCfg,
		logger:      logger,
	}
}

// ListModels handles GET /api/models. The listing is cached upstream of
// this handler, so repeated polling is cheap.
func (h *ModelsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	creds := resolveCredentials(r, h.upstreamCfg)
	if creds.Missing() {
		shared.RespondWithError(w, r, http.StatusBadRequest,
			"API configuration missing, set an API key and endpoint")
		return
	}

	listing, err := h.catalog.Models(r.Context(), creds.APIURL, creds.APIKey)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			"Failed to fetch the model list", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, listing)
}
