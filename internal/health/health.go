// Package health serves the engine's liveness and readiness probes.
//
// Liveness (/healthz) only proves the process can answer HTTP. Readiness
// (/readyz) walks the engine's dependency [Checker] list — the preference
// store, the remote synthesis backend, optionally the local speech engine —
// and answers 503 until every dependency passes. The orchestrator's speech
// state is deliberately not part of readiness: an idle engine is a ready
// engine.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds each dependency probe so a hung backend cannot stall
// the readiness endpoint past the kubelet's own timeout.
const probeTimeout = 5 * time.Second

// Checker probes one engine dependency. Check returns nil when the
// dependency can serve speech traffic. Constructors for the concrete
// dependencies live in checkers.go.
type Checker struct {
	// Name keys the probe's entry in the readiness report (e.g. "kvstore",
	// "backend").
	Name string

	// Check must respect context cancellation; it runs under [probeTimeout].
	Check func(ctx context.Context) error
}

// report is the JSON body of both probe endpoints.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler answers /healthz and /readyz. The checker list is fixed at
// construction, so the handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a Handler over the given dependency checkers.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register mounts the probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleLive)
	mux.HandleFunc("GET /readyz", h.handleReady)
}

// handleLive always answers 200: a process that reached this handler is
// alive, whatever state its dependencies are in.
func (h *Handler) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// handleReady probes every dependency in order and answers 503 as soon as
// the collected report contains a failure.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	rep, ready := h.probe(r.Context())

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

// probe runs every checker under its own [probeTimeout] and folds the
// results into a report. A single failing dependency makes the whole engine
// not ready; speech cannot degrade around a dead store or backend the way
// it degrades around a missing local engine.
func (h *Handler) probe(ctx context.Context) (report, bool) {
	rep := report{
		Status: "ok",
		Checks: make(map[string]string, len(h.checkers)),
	}
	ready := true

	for _, c := range h.checkers {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := c.Check(probeCtx)
		cancel()

		if err != nil {
			rep.Checks[c.Name] = "fail: " + err.Error()
			rep.Status = "fail"
			ready = false
			continue
		}
		rep.Checks[c.Name] = "ok"
	}
	return rep, ready
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
