package originapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Directory is an in-process origin directory: a mutex-guarded map of
// namespace to owning relay URL, served over HTTP so it can also back
// other relay processes in a small deployment.
type Directory struct {
	log *slog.Logger
	mu  sync.RWMutex
	m   map[string]string
}

// NewDirectory creates an empty Directory. If log is nil, slog.Default() is used.
func NewDirectory(log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{
		log: log.With("component", "origin-directory"),
		m:   make(map[string]string),
	}
}

// Set records that url currently owns namespace.
func (d *Directory) Set(namespace, url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[namespace] = url
	d.log.Info("origin set", "namespace", namespace, "url", url)
}

// Delete removes any origin recorded for namespace.
func (d *Directory) Delete(namespace string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.m, namespace)
	d.log.Info("origin deleted", "namespace", namespace)
}

// Get returns the URL owning namespace, or false if none is recorded.
func (d *Directory) Get(namespace string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	url, ok := d.m[namespace]
	return url, ok
}

// ServeHTTP implements the wire contract consumed by Client: GET/POST/DELETE
// on /origin/{namespace}.
func (d *Directory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	namespace := strings.TrimPrefix(r.URL.Path, "/origin/")
	if namespace == "" {
		writeError(w, http.StatusBadRequest, "namespace required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		url, ok := d.Get(namespace)
		if !ok {
			writeError(w, http.StatusNotFound, "no origin for namespace")
			return
		}
		writeJSON(w, http.StatusOK, Origin{URL: url})

	case http.MethodPost:
		var origin Origin
		if err := json.NewDecoder(r.Body).Decode(&origin); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		d.Set(namespace, origin.URL)
		writeJSON(w, http.StatusOK, origin)

	case http.MethodDelete:
		d.Delete(namespace)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "unsupported method")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
