// Package registry owns the set of in-flight and recently-finished
// generation jobs. It is a purely in-memory store scoped to the process
// lifetime: jobs are created pending, mutated by their orchestrator, and
// removed by TTL eviction. All operations on a single job are linearizable;
// nothing here ever blocks on the network.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pvannier/lumen-api/internal/domain"
	"github.com/pvannier/lumen-api/internal/telemetry"
)

// Patch is a partial update merged into an existing job. Nil fields are
// left untouched.
type Patch struct {
	Status *domain.JobStatus
	Phase  *domain.JobPhase
	Result *domain.GenerationResult
	Error  *string
}

// entry pairs a job with its eviction timer. timerSeq guards against a
// stale timer firing after it was rescheduled: the eviction closure
// captures the sequence number it was scheduled with and only evicts when
// it still matches.
type entry struct {
	job      domain.Job
	evict    *time.Timer
	timerSeq uint64
}

// Registry is the process-wide job store. It is constructed once at the
// composition root and injected wherever job state is read or written.
type Registry struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*entry
	stopped bool

	pendingTTL  time.Duration
	terminalTTL time.Duration
	logger      *slog.Logger
}

// New creates a Registry with the given TTL windows. pendingTTL bounds how
// long a job may sit pending before eviction; terminalTTL is the window a
// finished job stays readable for pollers.
func New(pendingTTL, terminalTTL time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		jobs:        make(map[uuid.UUID]*entry),
		pendingTTL:  pendingTTL,
		terminalTTL: terminalTTL,
		logger:      logger,
	}
}

// Create allocates a fresh job in the pending/queued state, schedules its
// pending-TTL eviction, and returns the id. The job is visible to readers
// before any background work starts.
func (r *Registry) Create(req domain.GenerationRequest) (uuid.UUID, error) {
	job, err := domain.NewJob(req)
	if err != nil {
		return uuid.Nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e := &entry{job: *job}
	r.jobs[job.ID] = e
	r.scheduleEvictionLocked(job.ID, e, r.pendingTTL)
	telemetry.RegistrySize.Set(float64(len(r.jobs)))

	r.logger.Debug("job created",
		"job_id", job.ID,
		"model", job.Request.Model)

	return job.ID, nil
}

// Get returns a copy of the job, or found=false if the id was never issued
// or the job has been evicted. It has no side effects.
func (r *Registry) Get(id uuid.UUID) (domain.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, false
	}

	// Detach the result so callers cannot reach back into the stored job.
	job := e.job
	if e.job.Result != nil {
		result := *e.job.Result
		job.Result = &result
	}
	return job, true
}

// Update merges the patch into the job and bumps UpdatedAt. If the merged
// status is terminal the eviction is rescheduled to the terminal TTL,
// replacing any previously scheduled eviction. A missing id is a normal
// outcome (eviction racing slow background work) and reports false without
// logging an error. A patch that would move a terminal job, or regress the
// status ordering, is dropped.
func (r *Registry) Update(id uuid.UUID, patch Patch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return false
	}

	if e.job.Status.Terminal() {
		r.logger.Warn("dropping update to terminal job", "job_id", id)
		return false
	}

	if patch.Status != nil && !e.job.Status.CanTransitionTo(*patch.Status) {
		r.logger.Warn("dropping non-monotonic status update",
			"job_id", id,
			"from", string(e.job.Status),
			"to", string(*patch.Status))
		return false
	}

	if patch.Status != nil {
		e.job.Status = *patch.Status
	}
	if patch.Phase != nil {
		e.job.Phase = *patch.Phase
	}
	if patch.Result != nil {
		result := *patch.Result
		e.job.Result = &result
	}
	if patch.Error != nil {
		e.job.Error = *patch.Error
	}
	e.job.UpdatedAt = time.Now().UTC()

	if e.job.Status.Terminal() {
		r.scheduleEvictionLocked(id, e, r.terminalTTL)
	}

	return true
}

// Delete removes the job and cancels any pending eviction timer.
// It is idempotent.
func (r *Registry) Delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return
	}

	if e.evict != nil {
		e.evict.Stop()
	}
	e.timerSeq++
	delete(r.jobs, id)
	telemetry.RegistrySize.Set(float64(len(r.jobs)))
}

// Len reports the number of jobs currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Stop cancels all eviction timers and rejects any timer that is already
// in flight. The registry remains readable; Stop exists so a clean process
// shutdown does not leave timer goroutines behind.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	for _, e := range r.jobs {
		if e.evict != nil {
			e.evict.Stop()
		}
		e.timerSeq++
	}
}

// scheduleEvictionLocked replaces the entry's eviction timer with a new one
// firing after ttl. Must be called with r.mu held; the cancel-and-replace
// and the job mutation are therefore a single atomic unit, so a stale timer
// can never evict a job that has since progressed.
func (r *Registry) scheduleEvictionLocked(id uuid.UUID, e *entry, ttl time.Duration) {
	if e.evict != nil {
		e.evict.Stop()
	}
	e.timerSeq++
	seq := e.timerSeq

	e.evict = time.AfterFunc(ttl, func() {
		r.evictIfCurrent(id, seq)
	})
}

// evictIfCurrent removes the job only when the firing timer is still the
// most recently scheduled one for that entry.
func (r *Registry) evictIfCurrent(id uuid.UUID, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}

	e, ok := r.jobs[id]
	if !ok || e.timerSeq != seq {
		return
	}

	delete(r.jobs, id)
	telemetry.RegistrySize.Set(float64(len(r.jobs)))
	telemetry.JobsEvicted.Inc()

	r.logger.Debug("job evicted",
		"job_id", id,
		"status", string(e.job.Status))
}
