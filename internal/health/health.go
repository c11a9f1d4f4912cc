// Package health serves the daemon's liveness and readiness probes.
//
//   - /healthz — liveness; a process that can answer HTTP is alive.
//   - /readyz  — readiness; probes every registered [Checker] and returns
//     503 when any critical dependency fails.
//
// Dictation keeps working when optional dependencies (the history store,
// the polish provider) are down, so checkers may be marked [Optional]: a
// failing optional checker is reported as "degraded" in the response body
// but does not flip readiness to 503.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// checkTimeout bounds a single readiness probe.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when the dependency is
// usable and an error describing the failure otherwise.
type Checker struct {
	// Name labels the check in the JSON response (e.g. "history",
	// "transcriber").
	Name string

	// Check must respect context cancellation.
	Check func(ctx context.Context) error

	// Optional marks a dependency the pipeline can dictate without. A
	// failing optional check degrades the report instead of failing it.
	Optional bool
}

type checkResult struct {
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

type report struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. The checker list is fixed at
// construction time; Handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] over the given checkers. Checks run concurrently
// on each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz probes every checker and aggregates: all pass → "ok" 200; only
// optional checkers fail → "degraded" 200; any required checker fails →
// "fail" 503. Each probe gets its own [checkTimeout] deadline derived from
// the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		checks  = make(map[string]checkResult, len(h.checkers))
		failed  bool
		degrade bool
	)

	for _, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.Check(ctx)
			res := checkResult{State: "ok", Latency: time.Since(start).Round(time.Millisecond).String()}
			if err != nil {
				res.Error = err.Error()
				if c.Optional {
					res.State = "degraded"
				} else {
					res.State = "fail"
				}
			}

			mu.Lock()
			checks[c.Name] = res
			if err != nil {
				if c.Optional {
					degrade = true
				} else {
					failed = true
				}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	rep := report{Status: "ok", Checks: checks}
	status := http.StatusOK
	switch {
	case failed:
		rep.Status = "fail"
		status = http.StatusServiceUnavailable
	case degrade:
		rep.Status = "degraded"
	}
	writeJSON(w, status, rep)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
