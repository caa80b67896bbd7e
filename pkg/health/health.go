package health

import "sync"

// CheckFunc reports whether one dependency is healthy, with a short
// human-readable detail.
type CheckFunc func() (bool, string)

// Result is the outcome of one named check.
type Result struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Registry holds named health checks and runs them in registration
// order.
type Registry struct {
	mu     sync.RWMutex
	names  []string
	checks map[string]CheckFunc
}

func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]CheckFunc)}
}

// Register adds a named check. Re-registering a name replaces the
// check but keeps its position.
func (r *Registry) Register(name string, check CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.checks[name]; !exists {
		r.names = append(r.names, name)
	}
	r.checks[name] = check
}

// Run executes every check.
func (r *Registry) Run() []Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]Result, 0, len(r.names))
	for _, name := range r.names {
		ok, detail := r.checks[name]()
		results = append(results, Result{Name: name, OK: ok, Detail: detail})
	}
	return results
}

// AllOK reports whether every result passed.
func AllOK(results []Result) bool {
	for _, res := range results {
		if !res.OK {
			return false
		}
	}
	return true
}
