package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the coarse lifecycle state of a generation job.
type JobStatus string

// Possible job status values. Transitions are monotonic:
// pending -> processing -> {completed | failed}.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// statusRank orders statuses for monotonicity checks. Both terminal
// statuses share a rank because neither may replace the other.
var statusRank = map[JobStatus]int{
	JobStatusPending:    0,
	JobStatusProcessing: 1,
	JobStatusCompleted:  2,
	JobStatusFailed:     2,
}

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether moving from s to next preserves the
// monotonic ordering. A terminal status never transitions again.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	return statusRank[next] > statusRank[s]
}

// JobPhase is a finer-grained progress marker within a job's processing.
// Phases are purely observational; callers must not base correctness
// decisions on them.
type JobPhase string

// Possible job phase values, in progression order.
const (
	JobPhaseQueued          JobPhase = "queued"
	JobPhasePreparing       JobPhase = "preparing"
	JobPhaseCallingModel    JobPhase = "calling_model"
	JobPhaseParsingResponse JobPhase = "parsing_response"
	JobPhaseCompleted       JobPhase = "completed"
	JobPhaseFailed          JobPhase = "failed"
)

// phaseRank orders phases for monotonicity checks. The failed phase can be
// reached from anywhere, so it shares the top rank with completed.
var phaseRank = map[JobPhase]int{
	JobPhaseQueued:          0,
	JobPhasePreparing:       1,
	JobPhaseCallingModel:    2,
	JobPhaseParsingResponse: 3,
	JobPhaseCompleted:       4,
	JobPhaseFailed:          4,
}

// Rank returns the ordinal position of the phase in the progression.
// Unknown phases rank below queued.
func (p JobPhase) Rank() int {
	rank, ok := phaseRank[p]
	if !ok {
		return -1
	}
	return rank
}

// ReferenceImage is an inline image supplied as conditioning input for a
// generation or edit request.
type ReferenceImage struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// GenerationRequest is the normalized, immutable snapshot of the parameters
// a job was created with.
type GenerationRequest struct {
	Prompt          string           `json:"prompt"`
	Model           string           `json:"model"`
	AspectRatio     string           `json:"aspect_ratio"`
	ImageSize       string           `json:"image_size"`
	UseSearch       bool             `json:"use_search"`
	ReferenceImages []ReferenceImage `json:"reference_images,omitempty"`
}

// GenerationResult holds the aggregated output of a completed job. Text may
// be empty when the model returned only an image; Image is a data URI and
// may be empty when the model returned only text.
type GenerationResult struct {
	Text              string          `json:"text"`
	Image             string          `json:"image,omitempty"`
	GroundingMetadata json.RawMessage `json:"grounding_metadata,omitempty"`
}

// Empty reports whether the result carries neither text nor an image.
func (r GenerationResult) Empty() bool {
	return r.Text == "" && r.Image == ""
}

// Job represents one tracked asynchronous generation request. Result is set
// exactly once when the status becomes completed; Error exactly once when
// it becomes failed. Neither is set while the job is pending or processing.
type Job struct {
	ID        uuid.UUID         `json:"id"`
	Status    JobStatus         `json:"status"`
	Phase     JobPhase          `json:"phase"`
	Request   GenerationRequest `json:"request"`
	Result    *GenerationResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewJob creates a Job in the pending/queued state with a fresh ID.
// Returns an error if the request snapshot fails validation.
func NewJob(req GenerationRequest) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New(),
		Status:    JobStatusPending,
		Phase:     JobPhaseQueued,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks the job's invariants.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyJobID)
	}

	if j.Request.Prompt == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyPrompt)
	}

	if j.Request.Model == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyModel)
	}

	if _, ok := statusRank[j.Status]; !ok {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidJobStatus)
	}

	if _, ok := phaseRank[j.Phase]; !ok {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidJobPhase)
	}

	return nil
}
