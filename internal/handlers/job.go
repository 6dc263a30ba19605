package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"ingest-control-plane/internal/models"
	"ingest-control-plane/internal/repository"
)

type JobHandler struct {
	repo   repository.JobRepository
	logger zerolog.Logger
}

func NewJobHandler(repo repository.JobRepository, logger zerolog.Logger) *JobHandler {
	return &JobHandler{repo: repo, logger: logger}
}

// StartJob creates a QUEUED job for an active source. A missing source is 404,
// an inactive one is 409; neither leaves a job row behind.
func (h *JobHandler) StartJob(w http.ResponseWriter, r *http.Request) {
	sourceID := mux.Vars(r)["sourceID"]
	job, err := h.repo.Create(sourceID)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	h.logger.Info().Str("job_id", job.ID).Str("source_id", sourceID).Msg("Ingestion job queued")
	writeJSON(w, http.StatusCreated, job)
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.repo.Get(mux.Vars(r)["jobID"])
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	// parse query params with defaults
	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil {
			offset = v
		}
	}

	status := models.JobStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		http.Error(w, "Unknown status filter", http.StatusBadRequest)
		return
	}

	jobs, err := h.repo.List(status, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		writeRepoError(w, err)
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// PatchJob applies a partial update to the job summary. Timestamps arrive as
// ISO-8601 strings with an optional trailing Z. Status moves run through the
// state machine; re-sending a terminal status is an idempotent success.
func (h *JobHandler) PatchJob(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status     *string        `json:"status"`
		StartedAt  *string        `json:"started_at"`
		FinishedAt *string        `json:"finished_at"`
		Checkpoint *string        `json:"checkpoint"`
		Metrics    models.JSONMap `json:"metrics"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	patch := models.JobPatch{Checkpoint: payload.Checkpoint, Metrics: payload.Metrics}
	if payload.Status != nil {
		status := models.JobStatus(*payload.Status)
		if !status.Valid() {
			http.Error(w, "Unknown status "+*payload.Status, http.StatusBadRequest)
			return
		}
		patch.Status = &status
	}
	if payload.StartedAt != nil {
		ts, err := models.ParseTimestamp(*payload.StartedAt)
		if err != nil {
			http.Error(w, "Invalid started_at timestamp", http.StatusBadRequest)
			return
		}
		patch.StartedAt = &ts
	}
	if payload.FinishedAt != nil {
		ts, err := models.ParseTimestamp(*payload.FinishedAt)
		if err != nil {
			http.Error(w, "Invalid finished_at timestamp", http.StatusBadRequest)
			return
		}
		patch.FinishedAt = &ts
	}
	if patch.Metrics != nil {
		if err := patch.Metrics.Validate(); err != nil {
			http.Error(w, "Invalid metrics: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	job, err := h.repo.Patch(mux.Vars(r)["jobID"], patch)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// AppendEvent writes one ledger event. Duplicate submissions produce duplicate
// rows; an idempotency key would be the hook for dedup if ever needed.
func (h *JobHandler) AppendEvent(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Type    string         `json:"type"`
		Payload models.JSONMap `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Type == "" {
		http.Error(w, "type is required", http.StatusBadRequest)
		return
	}
	if payload.Payload == nil {
		payload.Payload = models.JSONMap{}
	}
	if err := payload.Payload.Validate(); err != nil {
		http.Error(w, "Invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	evt, err := h.repo.AppendEvent(mux.Vars(r)["jobID"], payload.Type, payload.Payload)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, evt)
}

func (h *JobHandler) AppendError(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Details   models.JSONMap `json:"details"`
		Retryable *bool          `json:"retryable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}
	retryable := true
	if payload.Retryable != nil {
		retryable = *payload.Retryable
	}

	ingErr, err := h.repo.AppendError(mux.Vars(r)["jobID"], payload.Code, payload.Message, payload.Details, retryable)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ingErr)
}

func (h *JobHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.repo.ListEvents(mux.Vars(r)["jobID"])
	if err != nil {
		writeRepoError(w, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *JobHandler) ListErrors(w http.ResponseWriter, r *http.Request) {
	errs, err := h.repo.ListErrors(mux.Vars(r)["jobID"])
	if err != nil {
		writeRepoError(w, err)
		return
	}
	if errs == nil {
		errs = []models.IngestionError{}
	}
	writeJSON(w, http.StatusOK, errs)
}
