package models

import "time"

// Event types emitted by the ingestion worker. The type column itself is
// free-form; these are the ones the worker produces.
const (
	EventJobStarted  = "JOB_STARTED"
	EventProgress    = "PROGRESS"
	EventJobFinished = "JOB_FINISHED"
)

// Error codes emitted by the ingestion worker.
const (
	ErrCodeFileNotFound = "FILE_NOT_FOUND"
	ErrCodeCSVRead      = "CSV_READ_ERROR"
)

// SeverityError is the only severity written today.
const SeverityError = "ERROR"

// Event is an immutable fact about a job run. The store assigns id and ts at
// write time; retrieval order is insertion order.
type Event struct {
	ID      int64     `json:"id" db:"id"`
	JobID   string    `json:"job_id" db:"job_id"`
	TS      time.Time `json:"ts" db:"ts"`
	Type    string    `json:"type" db:"type"`
	Payload JSONMap   `json:"payload" db:"payload"`
}

// IngestionError is an immutable failure record. Retryable classifies whether
// resubmitting the job could succeed; retry itself happens outside this system.
type IngestionError struct {
	ID        int64     `json:"id" db:"id"`
	JobID     string    `json:"job_id" db:"job_id"`
	TS        time.Time `json:"ts" db:"ts"`
	Severity  string    `json:"severity" db:"severity"`
	Code      string    `json:"code" db:"code"`
	Message   string    `json:"message" db:"message"`
	Details   JSONMap   `json:"details" db:"details"`
	Retryable bool      `json:"retryable" db:"retryable"`
}
