package api

import (
	"log/slog"
	"net/http"

	"github.com/pvannier/lumen-api/internal/api/shared"
	"github.com/pvannier/lumen-api/internal/catalog"
	"github.com/pvannier/lumen-api/internal/config"
	"github.com/pvannier/lumen-api/internal/domain"
	"github.com/pvannier/lumen-api/internal/orchestrator"
	"github.com/pvannier/lumen-api/internal/registry"
	"github.com/pvannier/lumen-api/internal/telemetry"
)

// GenerateHandler handles asynchronous generation submissions.
type GenerateHandler struct {
	registry     *registry.Registry
	orchestrator *orchestrator.Orchestrator
	catalog      *catalog.Service
	upstreamCfg  config.UpstreamConfig
	logger       *slog.Logger
}

// NewGenerateHandler creates a new GenerateHandler.
func NewGenerateHandler(
	reg *registry.Registry,
	orch *orchestrator.Orchestrator,
	cat *catalog.Service,
	upstreamCfg config.UpstreamConfig,
	logger *slog.Logger,
) *GenerateHandler {
	return &GenerateHandler{
		registry:     reg,
		orchestrator: orch,
		catalog:      cat,
		upstreamCfg:  upstreamCfg,
		logger:       logger,
	}
}

// Submit handles POST /api/generate. Validation and capability checks run
// synchronously; on success the job is created and handed to the
// orchestrator, and the caller immediately gets the task id to poll.
func (h *GenerateHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	creds := resolveCredentials(r, h.upstreamCfg)
	if creds.Missing() {
		shared.RespondWithError(w, r, http.StatusBadRequest,
			"API configuration missing, set an API key and endpoint")
		return
	}

	model, err := h.catalog.Lookup(r.Context(), creds.APIURL, creds.APIKey, req.Model)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			"The selected model is not available", err)
		return
	}
	if err := checkGenerateCapabilities(model, len(req.ReferenceImages), req.ImageSize); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), err.Error(), err)
		return
	}

	domainReq := toDomainRequest(req)
	id, err := h.registry.Create(domainReq)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			"Invalid generation request", err)
		return
	}
	telemetry.JobsCreated.Inc()

	h.orchestrator.Launch(id, domainReq, creds, model.Capabilities)

	h.logger.Info("generation job accepted",
		"job_id", id,
		"model", req.Model,
		"reference_images", len(req.ReferenceImages),
		"use_search", req.UseSearch)

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitResponse{
		TaskID: id.String(),
		Status: string(domain.JobStatusPending),
	})
}
