// Package worker drives queued ingestion jobs to a terminal state.
//
// One worker processes one job at a time, synchronously. There is no lease or
// claim token on a job: pointing two workers at the same control surface is
// undefined behavior (duplicate JOB_STARTED events, interleaved checkpoints).
// A claimed_by/claim_expires_at pair on the job row is the place to add that
// guard before any multi-worker deployment.
package worker

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"ingest-control-plane/internal/client"
	"ingest-control-plane/internal/models"
)

type Config struct {
	Client        *client.Client
	PollInterval  time.Duration
	ProgressEvery int
	// CSVPathOverride replaces the source-configured path when set.
	CSVPathOverride string
	Logger          zerolog.Logger
}

type Worker struct {
	cfg Config
}

func New(cfg Config) *Worker {
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 2
	}
	return &Worker{cfg: cfg}
}

// Start polls for queued jobs until ctx is cancelled. Each tick claims at most
// one job and runs it to completion before the next poll. Errors are logged
// and polling continues; only cancellation stops the loop.
func (w *Worker) Start(ctx context.Context) error {
	w.cfg.Logger.Info().Dur("poll_interval", w.cfg.PollInterval).Msg("Worker started, polling for jobs...")
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.cfg.Logger.Info().Msg("Worker stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := w.processNextQueuedJob(); err != nil {
				// Log the error, but keep polling
				w.cfg.Logger.Error().Err(err).Msg("error processing job")
			}
		}
	}
}

func (w *Worker) processNextQueuedJob() error {
	jobs, err := w.cfg.Client.ListQueuedJobs(1)
	if err != nil {
		return errors.Wrap(err, "failed to list queued jobs")
	}
	if len(jobs) == 0 {
		return nil // nothing to claim
	}
	return w.Run(jobs[0])
}

// Run processes one job end to end. A missing or unreadable source is a
// handled failure: the job is reported FAILED with an error record and Run
// returns nil. A failure to reach the control surface while reporting is not
// retried; it aborts the run and surfaces as the returned error, leaving the
// job in whatever state was last committed.
func (w *Worker) Run(job models.Job) error {
	logger := w.cfg.Logger.With().Str("job_id", job.ID).Logger()
	logger.Info().Str("source_id", job.SourceID).Msg("Claimed ingestion job")

	src, err := w.cfg.Client.GetSource(job.SourceID)
	if err != nil {
		return errors.Wrap(err, "failed to fetch source")
	}

	path, err := w.resolveCSVPath(src)
	if err != nil || !fileExists(path) {
		msg := "CSV path not found: " + path
		if err != nil {
			msg = err.Error()
		}
		logger.Warn().Str("csv_path", path).Msg("Preflight check failed")
		if err := w.cfg.Client.PostError(job.ID, models.ErrCodeFileNotFound, msg, false); err != nil {
			return errors.Wrap(err, "failed to report preflight error")
		}
		return errors.Wrap(w.failJob(job.ID), "failed to mark job failed after preflight")
	}

	if err := w.markRunning(job.ID); err != nil {
		return errors.Wrap(err, "failed to transition job to RUNNING")
	}
	payload := models.JSONMap{"ts": models.FormatTimestamp(time.Now()), "csv_path": path}
	if err := w.cfg.Client.PostEvent(job.ID, models.EventJobStarted, payload); err != nil {
		return errors.Wrap(err, "failed to post JOB_STARTED event")
	}

	rows, readErr, reportErr := w.ingestCSV(job.ID, path)
	if reportErr != nil {
		return errors.Wrap(reportErr, "failed to report progress")
	}
	if readErr != nil {
		// Committed checkpoint/metrics stay as the last observed progress.
		logger.Warn().Err(readErr).Int("rows_read", rows).Msg("Ingestion failed mid-run")
		if err := w.cfg.Client.PostError(job.ID, models.ErrCodeCSVRead, readErr.Error(), true); err != nil {
			return errors.Wrap(err, "failed to report read error")
		}
		return errors.Wrap(w.failJob(job.ID), "failed to mark job failed after read error")
	}

	finished := models.JSONMap{"ts": models.FormatTimestamp(time.Now()), "rows_read": rows}
	if err := w.cfg.Client.PostEvent(job.ID, models.EventJobFinished, finished); err != nil {
		return errors.Wrap(err, "failed to post JOB_FINISHED event")
	}
	if err := w.succeedJob(job.ID, rows); err != nil {
		return errors.Wrap(err, "failed to mark job succeeded")
	}

	logger.Info().Int("rows_read", rows).Msg("Ingestion job completed")
	return nil
}

// ingestCSV iterates data rows (the first record is the header) and reports
// progress every ProgressEvery rows: one PROGRESS event, then checkpoint and
// metrics patched together so neither is observed without the other.
func (w *Worker) ingestCSV(jobID, path string) (rows int, readErr, reportErr error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err, nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	// header
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return 0, nil, nil
		}
		return 0, err, nil
	}

	for {
		if _, err := reader.Read(); err != nil {
			if err == io.EOF {
				return rows, nil, nil
			}
			return rows, err, nil
		}
		rows++

		if rows%w.cfg.ProgressEvery != 0 {
			continue
		}
		payload := models.JSONMap{"ts": models.FormatTimestamp(time.Now()), "rows_read": rows}
		if err := w.cfg.Client.PostEvent(jobID, models.EventProgress, payload); err != nil {
			return rows, nil, err
		}
		checkpoint := strconv.Itoa(rows)
		_, err := w.cfg.Client.PatchJob(jobID, client.PatchJobRequest{
			Checkpoint: &checkpoint,
			Metrics:    models.JSONMap{"rows_read": rows},
		})
		if err != nil {
			return rows, nil, err
		}
	}
}

func (w *Worker) resolveCSVPath(src *models.Source) (string, error) {
	path := w.cfg.CSVPathOverride
	if path == "" {
		path, _ = src.Config[models.ConfigKeyCSVPath].(string)
	}
	if path == "" {
		return "", errors.Errorf("source %s has no %s configured", src.ID, models.ConfigKeyCSVPath)
	}
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return path, err
		}
		path = abs
	}
	return path, nil
}

func (w *Worker) markRunning(jobID string) error {
	status := string(models.StatusRunning)
	now := models.FormatTimestamp(time.Now())
	_, err := w.cfg.Client.PatchJob(jobID, client.PatchJobRequest{
		Status:    &status,
		StartedAt: &now,
	})
	return err
}

func (w *Worker) failJob(jobID string) error {
	status := string(models.StatusFailed)
	now := models.FormatTimestamp(time.Now())
	_, err := w.cfg.Client.PatchJob(jobID, client.PatchJobRequest{
		Status:     &status,
		FinishedAt: &now,
	})
	return err
}

func (w *Worker) succeedJob(jobID string, rows int) error {
	status := string(models.StatusSucceeded)
	now := models.FormatTimestamp(time.Now())
	checkpoint := strconv.Itoa(rows)
	_, err := w.cfg.Client.PatchJob(jobID, client.PatchJobRequest{
		Status:     &status,
		FinishedAt: &now,
		Checkpoint: &checkpoint,
		Metrics:    models.JSONMap{"rows_read": rows},
	})
	return err
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
