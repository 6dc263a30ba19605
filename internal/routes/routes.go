package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"ingest-control-plane/internal/handlers"
)

// NewRouter sets up the API routes
func NewRouter(sources *handlers.SourceHandler, jobs *handlers.JobHandler) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Sources
	router.HandleFunc("/api/sources", sources.CreateSource).Methods(http.MethodPost)
	router.HandleFunc("/api/sources", sources.ListSources).Methods(http.MethodGet)
	router.HandleFunc("/api/sources/{sourceID}", sources.GetSource).Methods(http.MethodGet)
	router.HandleFunc("/api/sources/{sourceID}", sources.UpdateSource).Methods(http.MethodPatch)

	// Ingestion jobs
	router.HandleFunc("/api/sources/{sourceID}/ingestions", jobs.StartJob).Methods(http.MethodPost)
	router.HandleFunc("/api/ingestions", jobs.ListJobs).Methods(http.MethodGet)
	router.HandleFunc("/api/ingestions/{jobID}", jobs.GetJob).Methods(http.MethodGet)
	router.HandleFunc("/api/ingestions/{jobID}", jobs.PatchJob).Methods(http.MethodPatch)

	// Job ledger: events and errors
	router.HandleFunc("/api/ingestions/{jobID}/events", jobs.AppendEvent).Methods(http.MethodPost)
	router.HandleFunc("/api/ingestions/{jobID}/events", jobs.ListEvents).Methods(http.MethodGet)
	router.HandleFunc("/api/ingestions/{jobID}/errors", jobs.AppendError).Methods(http.MethodPost)
	router.HandleFunc("/api/ingestions/{jobID}/errors", jobs.ListErrors).Methods(http.MethodGet)

	return router
}
