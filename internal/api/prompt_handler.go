package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/pvannier/lumen-api/internal/api/shared"
	"github.com/pvannier/lumen-api/internal/config"
	"github.com/pvannier/lumen-api/internal/orchestrator"
	"github.com/pvannier/lumen-api/internal/upstream"
)

// defaultOptimizeModel rewrites prompts when the caller does not pick a
// text model explicitly.
const defaultOptimizeModel = "gemini-2.5-flash"

const optimizeInstruction = `You are an expert prompt writer for a text-to-image model. ` +
	`Rewrite the following prompt to be more vivid and specific: add concrete subject details, ` +
	`composition, lighting and style cues while preserving the original intent. ` +
	`Reply with the rewritten prompt only, no commentary.

Prompt: `

// PromptHandler rewrites user prompts via a text model.
type PromptHandler struct {
	sender      orchestrator.Sender
	upstreamCfg config.UpstreamConfig
	logger      *slog.Logger
}

// NewPromptHandler creates a new PromptHandler.
func NewPromptHandler(sender orchestrator.Sender, upstreamCfg config.UpstreamConfig, logger *slog.Logger) *PromptHandler {
	return &PromptHandler{
		sender:      sender,
		upstreamCfg: upstreamCfg,
		logger:      logger,
	}
}

// OptimizePrompt handles POST /api/optimize-prompt.
func (h *PromptHandler) OptimizePrompt(w http.ResponseWriter, r *http.Request) {
	var req OptimizePromptRequest
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

	model := req.Model
	if model == "" {
		model = defaultOptimizeModel
	}

	payload := upstream.GenerateContentRequest{
		Contents: []upstream.Content{
			{Parts: []upstream.Part{{Text: optimizeInstruction + req.Prompt}}},
		},
	}

	body, err := h.sender.Send(r.Context(), upstream.GenerateEndpoint(creds.APIURL, model), creds.APIKey, payload)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, upstreamStatusCode(err),
			"Prompt optimization failed, please try again later", err)
		return
	}

	result := upstream.Fold(body, h.logger)
	optimized := strings.TrimSpace(result.Text)
	if optimized == "" {
		shared.RespondWithError(w, r, http.StatusBadGateway,
			"The model returned no content, please adjust the prompt and try again")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, OptimizePromptResponse{
		OptimizedPrompt: optimized,
	})
}
