// Package poller implements the client-side wait loop for asynchronous
// jobs: it reads job status at a fixed interval until the job reaches a
// terminal state or the attempt budget runs out.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pvannier/lumen-api/internal/domain"
	"github.com/pvannier/lumen-api/internal/registry"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 120
)

var (
	ErrNilSource = errors.New("source cannot be nil")
	ErrNilLogger = errors.New("logger cannot be nil")

	// ErrWaitTimeout means the attempt budget ran out before the job
	// finished. It is distinct from a job that finished with status failed,
	// which Wait returns as a normal terminal job.
	ErrWaitTimeout = errors.New("gave up waiting for the job to finish")

	// ErrJobNotFound means the id is unknown, most likely evicted. Callers
	// that suspect the job is still being created may retry the whole wait.
	ErrJobNotFound = errors.New("job not found")
)

// Source yields the current state of a job. The bool reports existence.
type Source interface {
	JobStatus(ctx context.Context, id uuid.UUID) (domain.Job, bool, error)
}

// RegistrySource adapts a registry to the Source interface for in-process
// waiting.
type RegistrySource struct {
	Registry *registry.Registry
}

func (s RegistrySource) JobStatus(_ context.Context, id uuid.UUID) (domain.Job, bool, error) {
	job, ok := s.Registry.Get(id)
	return job, ok, nil
}

// Config tunes the wait loop. Zero fields fall back to the defaults.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// Poller waits for jobs to reach a terminal state.
type Poller struct {
	source      Source
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// New creates a Poller.
func New(source Source, cfg Config, logger *slog.Logger) (*Poller, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Poller{
		source:      source,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}, nil
}

// Wait polls until the job is terminal and returns its final state. onPhase,
// if non-nil, is invoked whenever a poll observes a phase it has not
// reported before; it is purely informational and intermediate phases may be
// skipped entirely when the job moves faster than the polling interval.
func (p *Poller) Wait(ctx context.Context, id uuid.UUID, onPhase func(domain.Job)) (domain.Job, error) {
	var lastPhase domain.JobPhase

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		job, ok, err := p.source.JobStatus(ctx, id)
		if err != nil {
			return domain.Job{}, fmt.Errorf("failed to read job status: %w", err)
		}
		if !ok {
			return domain.Job{}, ErrJobNotFound
		}

		if job.Phase != lastPhase {
			lastPhase = job.Phase
			p.logger.Debug("job phase observed",
				"job_id", id,
				"phase", job.Phase,
				"attempt", attempt)
			if onPhase != nil {
				onPhase(job)
			}
		}

		if job.Status.Terminal() {
			return job, nil
		}

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return domain.Job{}, ctx.Err()
		case <-time.After(p.interval):
		}
	}

	p.logger.Warn("poll budget exhausted",
		"job_id", id,
		"attempts", p.maxAttempts)
	return domain.Job{}, ErrWaitTimeout
}
