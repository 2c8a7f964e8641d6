// Package health serves liveness and readiness probes for the trainer.
//
//   - /healthz — liveness; a process that answers HTTP is alive.
//   - /readyz  — readiness; 200 only when every registered [Checker] passes.
//
// Readiness covers the external tools a session depends on: the capture and
// playback binaries and a writable recording directory. Responses are JSON
// with a "status" field ("ok" or "fail") and a per-check "checks" map.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// is usable and a descriptive error otherwise. It must respect context
// cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Binary reports ready when the named executable resolves, either as an
// absolute path or via PATH lookup.
func Binary(name, path string) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if _, err := exec.LookPath(path); err != nil {
				return fmt.Errorf("%s not found: %w", path, err)
			}
			return nil
		},
	}
}

// Dir reports ready when the recording directory exists and accepts writes.
// The probe file is removed immediately.
func Dir(name, dir string) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			probe := filepath.Join(dir, ".health")
			if err := os.WriteFile(probe, nil, 0o600); err != nil {
				return fmt.Errorf("not writable: %w", err)
			}
			return os.Remove(probe)
		},
	}
}

// result is the JSON response body for both endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. The checker list is fixed at
// construction time, so it is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a Handler evaluating the given checkers, in order, on each
// /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 only when every checker passes. Each check runs with a
// [checkTimeout] deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
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
