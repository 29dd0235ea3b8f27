package handlers

import (
	"net/http"
	"sync"
)

// StartupStep is one stage of process initialization
type StartupStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// ReadinessStatus is the body of the health endpoint
type ReadinessStatus struct {
	Ready    bool          `json:"ready"`
	Current  string        `json:"current"`
	Progress int           `json:"progress"`
	Steps    []StartupStep `json:"steps"`
}

// Readiness tracks initialization progress of the server
type Readiness struct {
	mu      sync.RWMutex
	ready   bool
	current string
	steps   []StartupStep
}

// NewReadiness creates a tracker for the named steps
func NewReadiness(steps ...string) *Readiness {
	r := &Readiness{current: "Initializing"}
	for _, name := range steps {
		r.steps = append(r.steps, StartupStep{Name: name})
	}
	return r
}

// Complete marks a step as done
func (r *Readiness) Complete(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.steps {
		if r.steps[i].Name == step {
			r.steps[i].Completed = true
			r.current = step
			return
		}
	}
}

// MarkReady marks the server as fully initialized
func (r *Readiness) MarkReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.steps {
		r.steps[i].Completed = true
	}
	r.ready = true
	r.current = "Server ready"
}

// MarkDraining flips the server back to not ready during shutdown
func (r *Readiness) MarkDraining() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = false
	r.current = "Shutting down"
}

// Status returns a snapshot of the initialization progress
func (r *Readiness) Status() ReadinessStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := ReadinessStatus{
		Ready:   r.ready,
		Current: r.current,
		Steps:   append([]StartupStep(nil), r.steps...),
	}
	if r.ready {
		status.Progress = 100
	} else if len(r.steps) > 0 {
		completed := 0
		for _, step := range r.steps {
			if step.Completed {
				completed++
			}
		}
		status.Progress = completed * 100 / len(r.steps)
	}
	return status
}

// ServeHTTP reports 200 once ready and 503 before
func (r *Readiness) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := r.Status()
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, status)
}
