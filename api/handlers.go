package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"pathfinder/synchronizer"
)

const (
	PathsRoute    = "/api/pathfinder/v2/"
	TopologyRoute = "/api/pathfinder/v2/topology"
	MetricsRoute  = "/metrics"

	maxQueryBytes = 1 << 20
)

// PathFinder is the query side of *synchronizer.Synchronizer.
type PathFinder interface {
	FindPaths(query synchronizer.PathQuery) (synchronizer.PathResponse, error)
	Status() synchronizer.Status
}

type Handlers struct {
	finder  PathFinder
	events  EventReader
	samples SampleReader
}

func NewHandlers(finder PathFinder) *Handlers {
	return &Handlers{finder: finder}
}

// FindPaths serves POST /api/pathfinder/v2/.
func (h *Handlers) FindPaths(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var query synchronizer.PathQuery
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxQueryBytes))
	if err := decoder.Decode(&query); err != nil {
		log.Warnf("FindPaths, invalid body from %s: %v", r.RemoteAddr, err)
		RespondWithError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	resp, err := h.finder.FindPaths(query)
	switch {
	case errors.Is(err, synchronizer.ErrInvalidQuery):
		log.Infof("FindPaths, rejected query %s -> %s: %v", query.Source, query.Destination, err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		log.Errorf("FindPaths, query %s -> %s failed: %v", query.Source, query.Destination, err)
		RespondWithError(w, http.StatusInternalServerError, "path search failed")
	default:
		RespondWithJSON(w, http.StatusOK, resp)
	}
}

// Topology serves GET /api/pathfinder/v2/topology.
func (h *Handlers) Topology(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	RespondWithJSON(w, http.StatusOK, h.finder.Status())
}
