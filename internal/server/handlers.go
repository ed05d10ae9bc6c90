package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"shipdeck/internal/security"

	"github.com/go-chi/chi/v5"
)

const (
	// Number of recent runs to return in the history endpoint
	RecentRunsLimit = 20
)

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	appNames := s.Registry.List()

	response := map[string]interface{}{
		"status":    "ok",
		"apps":      appNames,
		"app_count": s.Registry.Count(),
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleStatus returns the latest recorded run for every service
// identity in the history database.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	runs, err := s.History.AllServicesStatus(r.Context())
	if err != nil {
		s.Logger.Error("Failed to load service status", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch status"})
		return
	}

	response := map[string]interface{}{
		"services": runs,
		"count":    len(runs),
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleServiceHistory returns recent runs for one service identity.
func (s *Server) HandleServiceHistory(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	environment := chi.URLParam(r, "environment")
	service := chi.URLParam(r, "service")

	for kind, name := range map[string]string{
		"project": project, "environment": environment, "service": service,
	} {
		if err := security.ValidateName(kind, name); err != nil {
			s.Logger.Warn("Invalid name in history request", kind, name, "error", err)
			s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid %s: %v", kind, err)})
			return
		}
	}

	latest, err := s.History.LatestRun(r.Context(), project, environment, service)
	if err != nil {
		s.Logger.Error("Failed to get latest run", "error", err, "service", service)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch history"})
		return
	}
	if latest == nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "No runs recorded for this service"})
		return
	}

	recent, err := s.History.RecentRuns(r.Context(), project, environment, service, RecentRunsLimit)
	if err != nil {
		s.Logger.Error("Failed to get run history", "error", err, "service", service)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch history"})
		return
	}

	response := map[string]interface{}{
		"project":     project,
		"environment": environment,
		"service":     service,
		"latest_run":  latest,
		"recent_runs": recent,
	}

	s.respondJSON(w, http.StatusOK, response)
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}
