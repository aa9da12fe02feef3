package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/skridlevsky/commitboard/internal/activity"
)

// ActivitySource produces the dashboard payloads
type ActivitySource interface {
	Stats(ctx context.Context) (activity.StatsPayload, error)
	CommitPage(ctx context.Context, page, limit int) (activity.CommitPage, error)
}

// ActivityHandler handles stats and commit feed requests
type ActivityHandler struct {
	source ActivitySource
	log    logrus.FieldLogger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(source ActivitySource, log logrus.FieldLogger) *ActivityHandler {
	return &ActivityHandler{
		source: source,
		log:    log,
	}
}

// Stats handles GET /api/stats
func (h *ActivityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	payload, err := h.source.Stats(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to build stats")
		respondError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, payload)
}

// Commits handles GET /api/commits?page=&limit=
// Out of range values are clamped rather than rejected.
func (h *ActivityHandler) Commits(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", activity.DefaultPageLimit)

	result, err := h.source.CommitPage(r.Context(), page, limit)
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"page":  page,
			"limit": limit,
		}).Error("Failed to build commit page")
		respondError(w, http.StatusInternalServerError, "Failed to load commits")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// queryInt parses an integer query parameter, falling back on absence or garbage
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
