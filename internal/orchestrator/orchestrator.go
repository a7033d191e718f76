// Package orchestrator drives a generation job through its phases: it
// prepares the outbound request, calls the retrying transport, folds the
// streamed response, and writes progress and the final result or error back
// into the job registry. It is the only writer of job state and the single
// place where upstream failures are downgraded to stable, human-facing
// messages.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pvannier/lumen-api/internal/catalog"
	"github.com/pvannier/lumen-api/internal/domain"
	"github.com/pvannier/lumen-api/internal/registry"
	"github.com/pvannier/lumen-api/internal/telemetry"
	"github.com/pvannier/lumen-api/internal/upstream"
)

// Dependency validation errors.
var (
	ErrNilRegistry = errors.New("registry cannot be nil")
	ErrNilSender   = errors.New("sender cannot be nil")
	ErrNilLogger   = errors.New("logger cannot be nil")
)

// Sender issues one upstream call with retries. Satisfied by
// *upstream.Client; narrowed to an interface so tests can substitute a
// scripted transport.
type Sender interface {
	Send(ctx context.Context, endpoint, apiKey string, payload any) ([]byte, error)
}

// Credentials are the upstream endpoint and key a job runs against.
type Credentials struct {
	APIURL string
	APIKey string
}

// Missing reports whether either half of the configuration is absent.
func (c Credentials) Missing() bool {
	return c.APIURL == "" || c.APIKey == ""
}

// Orchestrator owns the background processing of jobs.
type Orchestrator struct {
	registry *registry.Registry
	sender   Sender
	logger   *slog.Logger
}

// New creates an Orchestrator.
func New(reg *registry.Registry, sender Sender, logger *slog.Logger) (*Orchestrator, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}
	if sender == nil {
		return nil, ErrNilSender
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &Orchestrator{
		registry: reg,
		sender:   sender,
		logger:   logger,
	}, nil
}

// Launch starts processing the job in a detached goroutine and returns
// immediately. The goroutine carries its own error boundary: a panic or any
// processing error still drives the job to a terminal state, so a job can
// never be left silently pending by a failed launch.
func (o *Orchestrator) Launch(jobID uuid.UUID, req domain.GenerationRequest, creds Credentials, caps catalog.Capabilities) {
	go func() {
		telemetry.JobsInFlight.Inc()
		defer telemetry.JobsInFlight.Dec()

		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("job processing panicked",
					"job_id", jobID,
					"panic", r)
				o.fail(jobID, msgRequestFailed)
			}
		}()

		o.process(context.Background(), jobID, req, creds, caps)
	}()
}

// process runs the job state machine. Phase transitions are strictly
// ordered; any error short-circuits to failed.
func (o *Orchestrator) process(ctx context.Context, jobID uuid.UUID, req domain.GenerationRequest, creds Credentials, caps catalog.Capabilities) {
	logger := o.logger.With("job_id", jobID, "model", req.Model)

	o.transition(jobID, domain.JobStatusProcessing, domain.JobPhasePreparing)

	if creds.Missing() {
		logger.Warn("job has no usable upstream configuration")
		o.fail(jobID, msgConfigMissing)
		return
	}

	payload := BuildGenerateContent(req, caps)
	endpoint := upstream.StreamEndpoint(creds.APIURL, req.Model)

	logger.Info("calling model", "reference_images", len(req.ReferenceImages))
	o.transition(jobID, "", domain.JobPhaseCallingModel)

	body, err := o.sender.Send(ctx, endpoint, creds.APIKey, payload)
	if err != nil {
		logger.Warn("upstream call failed", "error", err)
		o.fail(jobID, userFacingMessage(err))
		return
	}

	o.transition(jobID, "", domain.JobPhaseParsingResponse)

	result := upstream.Fold(body, logger)
	if result.Empty() {
		logger.Warn("upstream returned neither text nor image")
		o.fail(jobID, msgEmptyResponse)
		return
	}

	status := domain.JobStatusCompleted
	phase := domain.JobPhaseCompleted
	if o.registry.Update(jobID, registry.Patch{
		Status: &status,
		Phase:  &phase,
		Result: &result,
	}) {
		telemetry.JobsCompleted.Inc()
		logger.Info("job completed",
			"text_length", len(result.Text),
			"has_image", result.Image != "")
	}
}

// transition records a phase (and optionally status) change. A false
// return from the registry means the job raced eviction; the work simply
// continues and later writes are equally tolerated as no-ops.
func (o *Orchestrator) transition(jobID uuid.UUID, status domain.JobStatus, phase domain.JobPhase) {
	patch := registry.Patch{Phase: &phase}
	if status != "" {
		patch.Status = &status
	}
	o.registry.Update(jobID, patch)
}

// fail drives the job to the failed state with a fixed user-facing message.
func (o *Orchestrator) fail(jobID uuid.UUID, message string) {
	status := domain.JobStatusFailed
	phase := domain.JobPhaseFailed
	if o.registry.Update(jobID, registry.Patch{
		Status: &status,
		Phase:  &phase,
		Error:  &message,
	}) {
		telemetry.JobsFailed.Inc()
	}
}

// BuildGenerateContent assembles the outbound payload from a request
// snapshot, applying the model's capability constraints: the aspect ratio
// is sent only when supported, a mandated output size always wins over the
// requested one, and search grounding is enabled only when the model
// supports it.
func BuildGenerateContent(req domain.GenerationRequest, caps catalog.Capabilities) upstream.GenerateContentRequest {
	parts := []upstream.Part{{Text: req.Prompt}}
	for _, img := range req.ReferenceImages {
		parts = append(parts, upstream.Part{
			InlineData: &upstream.InlineData{MimeType: img.MimeType, Data: img.Data},
		})
	}

	genConfig := &upstream.GenerationConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	if caps.SupportsAspectRatio || caps.SupportsImageSize || caps.ForcedImageSize != "" {
		imageConfig := &upstream.ImageConfig{}
		if caps.SupportsAspectRatio && req.AspectRatio != "" && req.AspectRatio != "auto" {
			imageConfig.AspectRatio = req.AspectRatio
		}
		switch {
		case caps.ForcedImageSize != "":
			imageConfig.ImageSize = caps.ForcedImageSize
		case caps.SupportsImageSize:
			imageConfig.ImageSize = req.ImageSize
		}
		genConfig.ImageConfig = imageConfig
	}

	out := upstream.GenerateContentRequest{
		Contents:         []upstream.Content{{Parts: parts}},
		GenerationConfig: genConfig,
	}

	if req.UseSearch && caps.SupportsSearchGrounding {
		out.Tools = []upstream.Tool{{}}
	}

	return out
}
