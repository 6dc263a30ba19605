package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ingest-control-plane/internal/models"
)

type JobRepository interface {
	// Job summary methods
	Create(sourceID string) (models.Job, error)
	Get(id string) (models.Job, error)
	List(status models.JobStatus, limit, offset int) ([]models.Job, error)
	Patch(id string, patch models.JobPatch) (models.Job, error)

	// Ledger methods: append-only, never updated or deleted
	AppendEvent(jobID, eventType string, payload models.JSONMap) (models.Event, error)
	AppendError(jobID, code, message string, details models.JSONMap, retryable bool) (models.IngestionError, error)
	ListEvents(jobID string) ([]models.Event, error)
	ListErrors(jobID string) ([]models.IngestionError, error)
}

type jobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) JobRepository {
	return &jobRepository{db: db}
}

const jobColumns = "id, source_id, status, started_at, finished_at, checkpoint, metrics, created_at"

// Create inserts a QUEUED job for an active source. The INSERT..SELECT guard
// means no row is created when the source is missing or inactive; the two are
// told apart with a follow-up lookup.
func (r *jobRepository) Create(sourceID string) (models.Job, error) {
	query := `
		INSERT INTO ingestion_jobs (id, source_id, status)
		SELECT $1, s.id, $2
		FROM sources s
		WHERE s.id = $3 AND s.status = $4
		RETURNING ` + jobColumns
	job, err := scanJob(r.db.QueryRow(query, uuid.NewString(), models.StatusQueued, sourceID, models.SourceStatusActive))
	if err != sql.ErrNoRows {
		return job, err
	}

	var status string
	err = r.db.QueryRow(`SELECT status FROM sources WHERE id = $1`, sourceID).Scan(&status)
	if err == sql.ErrNoRows {
		return job, ErrNotFound
	}
	if err != nil {
		return job, err
	}
	return job, ErrSourceInactive
}

func (r *jobRepository) Get(id string) (models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM ingestion_jobs WHERE id = $1`
	job, err := scanJob(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return job, ErrNotFound
	}
	return job, err
}

func (r *jobRepository) List(status models.JobStatus, limit, offset int) ([]models.Job, error) {
	var (
		query string
		args  []interface{}
	)
	if status != "" {
		query = `SELECT ` + jobColumns + `
			FROM ingestion_jobs
			WHERE status = $1
			ORDER BY created_at ASC, id ASC
			LIMIT $2 OFFSET $3`
		args = []interface{}{status, limit, offset}
	} else {
		query = `SELECT ` + jobColumns + `
			FROM ingestion_jobs
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2`
		args = []interface{}{limit, offset}
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var job models.Job
		if err := rows.Scan(
			&job.ID,
			&job.SourceID,
			&job.Status,
			&job.StartedAt,
			&job.FinishedAt,
			&job.Checkpoint,
			&job.Metrics,
			&job.CreatedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Patch applies a partial update. Status changes are validated against the
// state machine under a row lock: re-applying the current status is an
// idempotent no-op, any other move off a terminal state is rejected. Entering
// RUNNING or a terminal state without an explicit timestamp backfills
// started_at/finished_at so the status/timestamp pairing always holds.
func (r *jobRepository) Patch(id string, patch models.JobPatch) (models.Job, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return models.Job{}, err
	}
	defer tx.Rollback()

	var current models.JobStatus
	err = tx.QueryRow(`SELECT status FROM ingestion_jobs WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return models.Job{}, ErrNotFound
	}
	if err != nil {
		return models.Job{}, err
	}

	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		next := *patch.Status
		if !current.CanTransition(next) {
			return models.Job{}, ErrInvalidTransition
		}
		add("status", next)
		if next == models.StatusRunning && patch.StartedAt == nil {
			sets = append(sets, "started_at = COALESCE(started_at, now())")
		}
		if next.Terminal() && patch.FinishedAt == nil {
			sets = append(sets, "finished_at = COALESCE(finished_at, now())")
		}
	}
	if patch.StartedAt != nil {
		add("started_at", *patch.StartedAt)
	}
	if patch.FinishedAt != nil {
		add("finished_at", *patch.FinishedAt)
	}
	if patch.Checkpoint != nil {
		add("checkpoint", *patch.Checkpoint)
	}
	if patch.Metrics != nil {
		add("metrics", patch.Metrics)
	}

	var job models.Job
	if len(sets) == 0 {
		job, err = scanJob(tx.QueryRow(`SELECT `+jobColumns+` FROM ingestion_jobs WHERE id = $1`, id))
	} else {
		args = append(args, id)
		query := fmt.Sprintf(
			`UPDATE ingestion_jobs SET %s WHERE id = $%d RETURNING %s`,
			strings.Join(sets, ", "), len(args), jobColumns,
		)
		job, err = scanJob(tx.QueryRow(query, args...))
	}
	if err != nil {
		return models.Job{}, err
	}
	return job, tx.Commit()
}

// AppendEvent writes one ledger event. The store assigns id and ts; the
// INSERT..SELECT guard rejects unknown jobs without a separate lookup.
func (r *jobRepository) AppendEvent(jobID, eventType string, payload models.JSONMap) (models.Event, error) {
	evt := models.Event{JobID: jobID, Type: eventType, Payload: payload}
	query := `
		INSERT INTO ingestion_events (job_id, type, payload)
		SELECT j.id, $1, $2
		FROM ingestion_jobs j
		WHERE j.id = $3
		RETURNING id, ts`
	err := r.db.QueryRow(query, eventType, payload, jobID).Scan(&evt.ID, &evt.TS)
	if err == sql.ErrNoRows {
		return evt, ErrNotFound
	}
	return evt, err
}

func (r *jobRepository) AppendError(jobID, code, message string, details models.JSONMap, retryable bool) (models.IngestionError, error) {
	if details == nil {
		details = models.JSONMap{}
	}
	ingErr := models.IngestionError{
		JobID:     jobID,
		Severity:  models.SeverityError,
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
	}
	query := `
		INSERT INTO ingestion_errors (job_id, severity, code, message, details, retryable)
		SELECT j.id, $1, $2, $3, $4, $5
		FROM ingestion_jobs j
		WHERE j.id = $6
		RETURNING id, ts`
	err := r.db.QueryRow(query, ingErr.Severity, code, message, details, retryable, jobID).Scan(&ingErr.ID, &ingErr.TS)
	if err == sql.ErrNoRows {
		return ingErr, ErrNotFound
	}
	return ingErr, err
}

func (r *jobRepository) ListEvents(jobID string) ([]models.Event, error) {
	if err := r.requireJob(jobID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, job_id, ts, type, payload
		FROM ingestion_events
		WHERE job_id = $1
		ORDER BY id ASC`
	rows, err := r.db.Query(query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var evt models.Event
		if err := rows.Scan(&evt.ID, &evt.JobID, &evt.TS, &evt.Type, &evt.Payload); err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func (r *jobRepository) ListErrors(jobID string) ([]models.IngestionError, error) {
	if err := r.requireJob(jobID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, job_id, ts, severity, code, message, details, retryable
		FROM ingestion_errors
		WHERE job_id = $1
		ORDER BY id ASC`
	rows, err := r.db.Query(query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []models.IngestionError
	for rows.Next() {
		var ingErr models.IngestionError
		if err := rows.Scan(
			&ingErr.ID,
			&ingErr.JobID,
			&ingErr.TS,
			&ingErr.Severity,
			&ingErr.Code,
			&ingErr.Message,
			&ingErr.Details,
			&ingErr.Retryable,
		); err != nil {
			return nil, err
		}
		errs = append(errs, ingErr)
	}
	return errs, rows.Err()
}

func (r *jobRepository) requireJob(jobID string) error {
	var exists bool
	if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM ingestion_jobs WHERE id = $1)`, jobID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func scanJob(row *sql.Row) (models.Job, error) {
	var job models.Job
	err := row.Scan(
		&job.ID,
		&job.SourceID,
		&job.Status,
		&job.StartedAt,
		&job.FinishedAt,
		&job.Checkpoint,
		&job.Metrics,
		&job.CreatedAt,
	)
	return job, err
}
