// Package api implements the HTTP surface: job submission, status polling,
// synchronous editing, model listing and prompt optimization.
package api

import (
	"encoding/json"
	"time"

	"github.com/pvannier/lumen-api/internal/domain"
)

// ReferenceImagePayload is one inline image supplied with a request.
type ReferenceImagePayload struct {
	MimeType string `json:"mime_type" validate:"required"`
	Data     string `json:"data"      validate:"required"`
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Prompt          string                  `json:"prompt" validate:"required,min=1"`
	Model           string                  `json:"model"  validate:"required,min=1"`
	AspectRatio     string                  `json:"aspect_ratio,omitempty"`
	ImageSize       string                  `json:"image_size,omitempty" validate:"omitempty,oneof=1K 2K 4K"`
	UseSearch       bool                    `json:"use_search,omitempty"`
	ReferenceImages []ReferenceImagePayload `json:"reference_images,omitempty" validate:"dive"`
}

// EditRequest is the body of POST /api/edit. Unlike generation it requires
// at least one input image and answers synchronously.
type EditRequest struct {
	Prompt      string                  `json:"prompt" validate:"required,min=1"`
	Model       string                  `json:"model"  validate:"required,min=1"`
	AspectRatio string                  `json:"aspect_ratio,omitempty"`
	ImageSize   string                  `json:"image_size,omitempty" validate:"omitempty,oneof=1K 2K 4K"`
	Images      []ReferenceImagePayload `json:"images" validate:"required,min=1,dive"`
}

// OptimizePromptRequest is the body of POST /api/optimize-prompt.
type OptimizePromptRequest struct {
	Prompt string `json:"prompt" validate:"required,min=1"`
	Model  string `json:"model,omitempty"`
}

// SubmitResponse acknowledges an accepted generation job.
type SubmitResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// ResultPayload is the client-facing shape of a generation result.
type ResultPayload struct {
	Text              string          `json:"text"`
	Image             string          `json:"image,omitempty"`
	GroundingMetadata json.RawMessage `json:"grounding_metadata,omitempty"`
}

// JobResponse is the client-facing shape of a tracked job.
type JobResponse struct {
	TaskID    string         `json:"task_id"`
	Status    string         `json:"status"`
	Phase     string         `json:"phase"`
	Result    *ResultPayload `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// OptimizePromptResponse carries the rewritten prompt.
type OptimizePromptResponse struct {
	OptimizedPrompt string `json:"optimized_prompt"`
}

func resultToPayload(result *domain.GenerationResult) *ResultPayload {
	if result == nil {
		return nil
	}
	return &ResultPayload{
		Text:              result.Text,
		Image:             result.Image,
		GroundingMetadata: result.GroundingMetadata,
	}
}

func jobToResponse(job domain.Job) JobResponse {
	return JobResponse{
		TaskID:    job.ID.String(),
		Status:    string(job.Status),
		Phase:     string(job.Phase),
		Result:    resultToPayload(job.Result),
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func toDomainRequest(req GenerateRequest) domain.GenerationRequest {
	out := domain.GenerationRequest{
		Prompt:      req.Prompt,
		Model:       req.Model,
		AspectRatio: req.AspectRatio,
		ImageSize:   req.ImageSize,
		UseSearch:   req.UseSearch,
	}
	for _, img := range req.ReferenceImages {
		out.ReferenceImages = append(out.ReferenceImages, domain.ReferenceImage{
			MimeType: img.MimeType,
			Data:     img.Data,
		})
	}
	return out
}
