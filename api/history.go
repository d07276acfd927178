package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"pathfinder/history"
)

const (
	EventsRoute = "/api/pathfinder/v2/events"
	LinksRoute  = "/api/pathfinder/v2/links/"

	defaultEventsLimit = 50
	maxEventsLimit     = 1000
)

type EventReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

type SampleReader interface {
	Recent(linkID string, n int) ([]history.Sample, error)
}

type EventsResponse struct {
	Events []history.Entry `json:"events"`
}

type SamplesResponse struct {
	LinkID  string           `json:"link_id"`
	Samples []history.Sample `json:"samples"`
}

// WithHistory serves the audit log and link samples; either may be nil.
func (h *Handlers) WithHistory(events EventReader, samples SampleReader) *Handlers {
	h.events = events
	h.samples = samples
	return h
}

// Events serves GET /api/pathfinder/v2/events?limit=N, newest first.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.events == nil {
		RespondWithError(w, http.StatusNotFound, "event history is not enabled")
		return
	}

	limit, ok := queryInt(r, "limit", defaultEventsLimit)
	if !ok || limit <= 0 || limit > maxEventsLimit {
		RespondWithError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxEventsLimit))
		return
	}

	entries, err := h.events.Recent(r.Context(), limit)
	if err != nil {
		log.Errorf("Events, reading history failed: %v", err)
		RespondWithError(w, http.StatusInternalServerError, "reading event history failed")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	RespondWithJSON(w, http.StatusOK, EventsResponse{Events: entries})
}

// LinkSamples serves GET /api/pathfinder/v2/links/<id>/samples?n=N.
func (h *Handlers) LinkSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, LinksRoute)
	linkID, ok := strings.CutSuffix(rest, "/samples")
	if !ok || linkID == "" {
		RespondWithError(w, http.StatusNotFound, "not found")
		return
	}
	if h.samples == nil {
		RespondWithError(w, http.StatusNotFound, "link samples are not enabled")
		return
	}

	n, ok := queryInt(r, "n", 0)
	if !ok || n < 0 {
		RespondWithError(w, http.StatusBadRequest, "n must be a non-negative integer")
		return
	}

	samples, err := h.samples.Recent(linkID, n)
	if err != nil {
		log.Errorf("LinkSamples, reading samples of %s failed: %v", linkID, err)
		RespondWithError(w, http.StatusInternalServerError, "reading link samples failed")
		return
	}
	if samples == nil {
		samples = []history.Sample{}
	}
	RespondWithJSON(w, http.StatusOK, SamplesResponse{LinkID: linkID, Samples: samples})
}

func queryInt(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
