package relay

import (
	"log/slog"
	"sync"

	"github.com/zsiec/moqt/internal/serve"
)

// Registry tracks the broadcasts published locally through this relay,
// keyed by their joined namespace. Mirrors the teacher's stream.Manager:
// a mutex-guarded map with Create/Remove/List and logging at each
// transition.
type Registry struct {
	log *slog.Logger
	mu  sync.RWMutex
	m   map[string]*serve.BroadcastReader
}

// NewRegistry creates an empty Registry. If log is nil, slog.Default() is used.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log: log.With("component", "relay-registry"),
		m:   make(map[string]*serve.BroadcastReader),
	}
}

// Publish registers reader under namespace. Returns false if namespace is
// already published locally.
func (r *Registry) Publish(namespace string, reader *serve.BroadcastReader) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[namespace]; ok {
		r.log.Warn("namespace already published locally, rejecting duplicate", "namespace", namespace)
		return false
	}
	r.m[namespace] = reader
	r.log.Info("namespace published", "namespace", namespace)
	return true
}

// Unpublish removes namespace from the registry.
func (r *Registry) Unpublish(namespace string) {
	r.mu.Lock()
	_, ok := r.m[namespace]
	delete(r.m, namespace)
	r.mu.Unlock()
	if ok {
		r.log.Info("namespace unpublished", "namespace", namespace)
	}
}

// Lookup returns the reader published under namespace, if any.
func (r *Registry) Lookup(namespace string) (*serve.BroadcastReader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reader, ok := r.m[namespace]
	return reader, ok
}

// List returns every namespace currently published locally.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.m))
	for ns := range r.m {
		out = append(out, ns)
	}
	return out
}
