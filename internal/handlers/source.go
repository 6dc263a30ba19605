package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"ingest-control-plane/internal/models"
	"ingest-control-plane/internal/repository"
)

type SourceHandler struct {
	repo   repository.SourceRepository
	logger zerolog.Logger
}

func NewSourceHandler(repo repository.SourceRepository, logger zerolog.Logger) *SourceHandler {
	return &SourceHandler{repo: repo, logger: logger}
}

func (h *SourceHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name    string `json:"name"`
		CSVPath string `json:"csv_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Name == "" || payload.CSVPath == "" {
		http.Error(w, "name and csv_path are required", http.StatusBadRequest)
		return
	}

	config := models.JSONMap{models.ConfigKeyCSVPath: payload.CSVPath}
	src, err := h.repo.Create(payload.Name, models.SourceKindCSV, config)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create source")
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.repo.List()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list sources")
		writeRepoError(w, err)
		return
	}
	if sources == nil {
		sources = []models.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (h *SourceHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	src, err := h.repo.Get(mux.Vars(r)["sourceID"])
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

// UpdateSource toggles a source between active and inactive; everything else
// about a source is immutable once jobs reference it.
func (h *SourceHandler) UpdateSource(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Status != models.SourceStatusActive && payload.Status != models.SourceStatusInactive {
		http.Error(w, "status must be active or inactive", http.StatusBadRequest)
		return
	}

	src, err := h.repo.UpdateStatus(mux.Vars(r)["sourceID"], payload.Status)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}
