package repository

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"ingest-control-plane/internal/models"
)

// Memory is an in-process store implementing the same contracts as the
// Postgres repositories, including the state-machine checks and timestamp
// backfill done by the SQL patch. It backs the handler and worker tests and a
// store-less dev mode; it is not durable.
type Memory struct {
	mu      sync.Mutex
	sources map[string]models.Source
	order   []string
	jobs    map[string]models.Job
	jobIDs  []string
	events  map[string][]models.Event
	errors  map[string][]models.IngestionError
	nextID  int64
}

func NewMemory() *Memory {
	return &Memory{
		sources: map[string]models.Source{},
		jobs:    map[string]models.Job{},
		events:  map[string][]models.Event{},
		errors:  map[string][]models.IngestionError{},
	}
}

func (m *Memory) SourceRepository() SourceRepository { return &memorySourceRepo{m} }
func (m *Memory) JobRepository() JobRepository       { return &memoryJobRepo{m} }

type memorySourceRepo struct{ m *Memory }

func (r *memorySourceRepo) Create(name, kind string, config models.JSONMap) (models.Source, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	src := models.Source{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      kind,
		Config:    config,
		Status:    models.SourceStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	r.m.sources[src.ID] = src
	r.m.order = append(r.m.order, src.ID)
	return src, nil
}

func (r *memorySourceRepo) Get(id string) (models.Source, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	src, ok := r.m.sources[id]
	if !ok {
		return models.Source{}, ErrNotFound
	}
	return src, nil
}

func (r *memorySourceRepo) List() ([]models.Source, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	sources := make([]models.Source, 0, len(r.m.order))
	for _, id := range r.m.order {
		sources = append(sources, r.m.sources[id])
	}
	return sources, nil
}

func (r *memorySourceRepo) UpdateStatus(id, status string) (models.Source, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	src, ok := r.m.sources[id]
	if !ok {
		return models.Source{}, ErrNotFound
	}
	src.Status = status
	r.m.sources[id] = src
	return src, nil
}

type memoryJobRepo struct{ m *Memory }

func (r *memoryJobRepo) Create(sourceID string) (models.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	src, ok := r.m.sources[sourceID]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	if !src.Active() {
		return models.Job{}, ErrSourceInactive
	}

	job := models.Job{
		ID:        uuid.NewString(),
		SourceID:  sourceID,
		Status:    models.StatusQueued,
		Metrics:   models.JSONMap{},
		CreatedAt: time.Now().UTC(),
	}
	r.m.jobs[job.ID] = job
	r.m.jobIDs = append(r.m.jobIDs, job.ID)
	return job, nil
}

func (r *memoryJobRepo) Get(id string) (models.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	job, ok := r.m.jobs[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	return job, nil
}

func (r *memoryJobRepo) List(status models.JobStatus, limit, offset int) ([]models.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var jobs []models.Job
	if status != "" {
		// oldest first, matching the claim order
		for _, id := range r.m.jobIDs {
			if r.m.jobs[id].Status == status {
				jobs = append(jobs, r.m.jobs[id])
			}
		}
	} else {
		for i := len(r.m.jobIDs) - 1; i >= 0; i-- {
			jobs = append(jobs, r.m.jobs[r.m.jobIDs[i]])
		}
	}

	if offset > len(jobs) {
		offset = len(jobs)
	}
	jobs = jobs[offset:]
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (r *memoryJobRepo) Patch(id string, patch models.JobPatch) (models.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	job, ok := r.m.jobs[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}

	if patch.Status != nil {
		next := *patch.Status
		if !job.Status.CanTransition(next) {
			return models.Job{}, ErrInvalidTransition
		}
		job.Status = next
		now := time.Now().UTC()
		if next == models.StatusRunning && patch.StartedAt == nil && job.StartedAt == nil {
			job.StartedAt = &now
		}
		if next.Terminal() && patch.FinishedAt == nil && job.FinishedAt == nil {
			job.FinishedAt = &now
		}
	}
	if patch.StartedAt != nil {
		ts := *patch.StartedAt
		job.StartedAt = &ts
	}
	if patch.FinishedAt != nil {
		ts := *patch.FinishedAt
		job.FinishedAt = &ts
	}
	if patch.Checkpoint != nil {
		cp := *patch.Checkpoint
		job.Checkpoint = &cp
	}
	if patch.Metrics != nil {
		job.Metrics = patch.Metrics
	}

	r.m.jobs[id] = job
	return job, nil
}

func (r *memoryJobRepo) AppendEvent(jobID, eventType string, payload models.JSONMap) (models.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.jobs[jobID]; !ok {
		return models.Event{}, ErrNotFound
	}
	r.m.nextID++
	evt := models.Event{
		ID:      r.m.nextID,
		JobID:   jobID,
		TS:      time.Now().UTC(),
		Type:    eventType,
		Payload: payload,
	}
	r.m.events[jobID] = append(r.m.events[jobID], evt)
	return evt, nil
}

func (r *memoryJobRepo) AppendError(jobID, code, message string, details models.JSONMap, retryable bool) (models.IngestionError, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.jobs[jobID]; !ok {
		return models.IngestionError{}, ErrNotFound
	}
	if details == nil {
		details = models.JSONMap{}
	}
	r.m.nextID++
	ingErr := models.IngestionError{
		ID:        r.m.nextID,
		JobID:     jobID,
		TS:        time.Now().UTC(),
		Severity:  models.SeverityError,
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
	}
	r.m.errors[jobID] = append(r.m.errors[jobID], ingErr)
	return ingErr, nil
}

func (r *memoryJobRepo) ListEvents(jobID string) ([]models.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.jobs[jobID]; !ok {
		return nil, ErrNotFound
	}
	return append([]models.Event(nil), r.m.events[jobID]...), nil
}

func (r *memoryJobRepo) ListErrors(jobID string) ([]models.IngestionError, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.jobs[jobID]; !ok {
		return nil, ErrNotFound
	}
	return append([]models.IngestionError(nil), r.m.errors[jobID]...), nil
}
