package pipeline

import (
	"sync"
)

// RunRegistry keeps the summaries of runs started by this process, newest last.
// The web server serves run lookups from it.
type RunRegistry struct {
	mu    sync.RWMutex
	runs  map[string]*Summary
	order []string
}

func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: make(map[string]*Summary)}
}

// Register stores the summary under its run id. Registering the same run twice
// keeps its original position.
func (r *RunRegistry) Register(s *Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[s.RunId]; !ok {
		r.order = append(r.order, s.RunId)
	}
	r.runs[s.RunId] = s
}

// Get returns a snapshot of the summary for a run id, safe to marshal while the
// run is still in flight.
func (r *RunRegistry) Get(runId string) (*Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.runs[runId]
	if !ok {
		return nil, false
	}
	return s.Snapshot(), true
}

// List returns snapshots of all registered summaries in start order.
func (r *RunRegistry) List() []*Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	retval := make([]*Summary, 0, len(r.order))
	for _, id := range r.order {
		retval = append(retval, r.runs[id].Snapshot())
	}
	return retval
}
