package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pvannier/lumen-api/internal/api/shared"
	"github.com/pvannier/lumen-api/internal/catalog"
	"github.com/pvannier/lumen-api/internal/config"
	"github.com/pvannier/lumen-api/internal/domain"
	"github.com/pvannier/lumen-api/internal/orchestrator"
	"github.com/pvannier/lumen-api/internal/upstream"
)

// EditHandler handles synchronous image edits. Edits reuse the generation
// payload shape but call the non-streaming endpoint and answer inline
// instead of creating a job.
type EditHandler struct {
	sender      orchestrator.Sender
	catalog     *catalog.Service
	upstreamCfg config.UpstreamConfig
	logger      *slog.Logger
}

// NewEditHandler creates a new EditHandler.
func NewEditHandler(
	sender orchestrator.Sender,
	cat *catalog.Service,
	upstreamCfg config.UpstreamConfig,
	logger *slog.Logger,
) *EditHandler {
	return &EditHandler{
		sender:      sender,
		catalog:     cat,
		upstreamCfg: upstreamCfg,
		logger:      logger,
	}
}

// Edit handles POST /api/edit.
func (h *EditHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
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
	if err := checkEditCapabilities(model, len(req.Images), req.ImageSize); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), err.Error(), err)
		return
	}

	domainReq := domain.GenerationRequest{
		Prompt:      req.Prompt,
		Model:       req.Model,
		AspectRatio: req.AspectRatio,
		ImageSize:   req.ImageSize,
	}
	for _, img := range req.Images {
		domainReq.ReferenceImages = append(domainReq.ReferenceImages, domain.ReferenceImage{
			MimeType: img.MimeType,
			Data:     img.Data,
		})
	}

	payload := orchestrator.BuildGenerateContent(domainReq, model.Capabilities)
	endpoint := upstream.GenerateEndpoint(creds.APIURL, req.Model)

	body, err := h.sender.Send(r.Context(), endpoint, creds.APIKey, payload)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, upstreamStatusCode(err),
			"The edit could not be completed, please try again later", err)
		return
	}

	result := upstream.Fold(body, h.logger)
	if result.Empty() {
		shared.RespondWithError(w, r, http.StatusBadGateway,
			"The model returned no content, please adjust the prompt and try again")
		return
	}

	h.logger.Info("edit completed",
		"model", req.Model,
		"input_images", len(req.Images),
		"has_image", result.Image != "")

	shared.RespondWithJSON(w, r, http.StatusOK, ResultPayload{
		Text:              result.Text,
		Image:             result.Image,
		GroundingMetadata: result.GroundingMetadata,
	})
}

// upstreamStatusCode mirrors a transport failure as an HTTP status for
// synchronous endpoints.
func upstreamStatusCode(err error) int {
	var failure *upstream.Failure
	if !errors.As(err, &failure) {
		return http.StatusInternalServerError
	}

	switch failure.Kind {
	case upstream.FailureTimeout:
		return http.StatusGatewayTimeout
	case upstream.FailureNetwork:
		return http.StatusBadGateway
	case upstream.FailureStatus:
		switch failure.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden,
			http.StatusTooManyRequests, http.StatusBadRequest:
			return failure.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
