// Package health serves the liveness and readiness probes.
//
// /healthz answers 200 while the process can serve HTTP. /readyz answers 200
// only when every registered [Checker] passes and 503 otherwise. Both respond
// with a JSON body:
//
//	{"status":"fail","checks":{"recognizer":"ok","unmatched_db":"fail: dial tcp ..."}}
//
// rapvox registers a "recognizer" check backed by a [Flag] that is raised once
// the speech model is loaded, plus an "unmatched_db" check when the database
// sink is configured.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotReady is reported by a [Flag] checker until the flag is set.
var ErrNotReady = errors.New("not ready")

// CheckTimeout bounds a single readiness check.
const CheckTimeout = 5 * time.Second

// Flag is a one-bit readiness signal, such as "model loaded". The zero value
// is unset. Safe for concurrent use.
type Flag struct {
	ok atomic.Bool
}

// Set raises or lowers the flag.
func (f *Flag) Set(ok bool) { f.ok.Store(ok) }

// IsSet reports the current value.
func (f *Flag) IsSet() bool { return f.ok.Load() }

// Checker returns a [Checker] named name that fails with [ErrNotReady] while
// the flag is unset.
func (f *Flag) Checker(name string) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if !f.IsSet() {
			return ErrNotReady
		}
		return nil
	}}
}

// Checker is a named dependency probe. Check returns nil when the dependency
// is usable and must respect context cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probes. The checker list is fixed at construction.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] evaluating checkers on every /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs all checkers concurrently, each bounded by [CheckTimeout], and
// answers 503 if any of them fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.evaluate(r.Context())
	status := http.StatusOK
	if rep.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

// evaluate runs the checkers and summarises their results.
func (h *Handler) evaluate(ctx context.Context) report {
	errs := make([]error, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Go(func() {
			cctx, cancel := context.WithTimeout(ctx, CheckTimeout)
			defer cancel()
			errs[i] = c.Check(cctx)
		})
	}
	wg.Wait()

	rep := report{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	for i, c := range h.checkers {
		if errs[i] != nil {
			rep.Checks[c.Name] = "fail: " + errs[i].Error()
			rep.Status = "fail"
			continue
		}
		rep.Checks[c.Name] = "ok"
	}
	return rep
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
