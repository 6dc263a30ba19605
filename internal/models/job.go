package models

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	StatusQueued    JobStatus = "QUEUED"
	StatusRunning   JobStatus = "RUNNING"
	StatusSucceeded JobStatus = "SUCCEEDED"
	StatusFailed    JobStatus = "FAILED"
)

// transitions is the full set of legal status moves. A retry is a new job, so
// there is no path out of a terminal state and no CANCELLED/PAUSED.
var transitions = map[JobStatus][]JobStatus{
	StatusQueued:  {StatusRunning, StatusFailed},
	StatusRunning: {StatusSucceeded, StatusFailed},
}

// Valid reports whether s is a known status value.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the job can never change status again.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanTransition reports whether a job may move from s to target.
// Re-applying the current status is allowed as an idempotent no-op.
func (s JobStatus) CanTransition(target JobStatus) bool {
	if s == target {
		return true
	}
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

type Job struct {
	ID         string     `json:"id" db:"id"`
	SourceID   string     `json:"source_id" db:"source_id"`
	Status     JobStatus  `json:"status" db:"status"`
	StartedAt  *time.Time `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at" db:"finished_at"`
	Checkpoint *string    `json:"checkpoint" db:"checkpoint"`
	Metrics    JSONMap    `json:"metrics" db:"metrics"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// JobPatch is a partial update applied through the patch endpoint; nil fields
// are left untouched.
type JobPatch struct {
	Status     *JobStatus
	StartedAt  *time.Time
	FinishedAt *time.Time
	Checkpoint *string
	Metrics    JSONMap
}

// Empty reports whether the patch changes nothing.
func (p JobPatch) Empty() bool {
	return p.Status == nil && p.StartedAt == nil && p.FinishedAt == nil &&
		p.Checkpoint == nil && p.Metrics == nil
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp as sent by workers. A trailing
// literal Z is stripped before parsing; no timezone arithmetic happens
// downstream, all stored times are treated as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(value), "Z")
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unparseable timestamp %q", value)
}

// FormatTimestamp renders a timestamp the way the worker reports it.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format("2006-01-02T15:04:05.999999") + "Z"
}
