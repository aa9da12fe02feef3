package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skridlevsky/commitboard/internal/activity"
)

// HealthChecker is anything that can report its own health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// WarmerStatusProvider exposes the cache warmer's last run
type WarmerStatusProvider interface {
	Status() activity.WarmerStatus
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
	Warmer    *WarmerInfo       `json:"warmer,omitempty"`
}

// WarmerInfo represents warmer status
type WarmerInfo struct {
	LastRun string `json:"lastRun"`
	Status  string `json:"status"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewHealthHandler creates a health handler with service checks. Either
// dependency may be nil.
func NewHealthHandler(database HealthChecker, warmer WarmerStatusProvider, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := make(map[string]string)
		status := "ok"

		if database != nil {
			if err := database.Health(r.Context()); err != nil {
				log.WithError(err).Error("Database health check failed")
				services["database"] = "unhealthy"
				status = "degraded"
			} else {
				services["database"] = "healthy"
			}
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Services:  services,
		}

		if warmer != nil {
			ws := warmer.Status()
			response.Warmer = &WarmerInfo{
				LastRun: ws.LastRun.UTC().Format(time.RFC3339),
				Status:  ws.Status,
			}
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		respondJSON(w, code, response)
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes the generic error body
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
