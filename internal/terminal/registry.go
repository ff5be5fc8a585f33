// Package terminal manages per-project interactive shells: a process-wide
// registry of terminal state, parked screen handles that survive view
// remounts, and the multiplexer that drives the transport lifecycle.
package terminal

import (
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/cockpit/internal/logging"
)

// Record is one project's terminal state as published to observers.
type Record struct {
	ProjectName  string
	ProjectPath  string
	Connected    bool
	ConnectedAt  time.Time
	LastActivity time.Time
}

// Listener is notified synchronously after any registry mutation.
type Listener func()

// Registry is the shared table of terminal records. It is constructed and
// injected rather than held as a package-level singleton, so tests get
// isolated instances.
type Registry struct {
	mu        sync.Mutex
	records   map[string]*Record
	listeners map[int]Listener
	nextID    int
	closed    bool
	clock     func() time.Time
	logger    *logging.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{
		records:   make(map[string]*Record),
		listeners: make(map[int]Listener),
		clock:     time.Now,
		logger:    logger.WithComponent("terminal-registry"),
	}
}

// Register upserts the project's record. ConnectedAt is stamped only when
// registering as connected; LastActivity always refreshes.
func (r *Registry) Register(projectName, projectPath string, connected bool) {
	r.mu.Lock()
	now := r.clock()
	rec, ok := r.records[projectName]
	if !ok {
		rec = &Record{ProjectName: projectName}
		r.records[projectName] = rec
	}
	rec.ProjectPath = projectPath
	rec.Connected = connected
	rec.LastActivity = now
	if connected {
		rec.ConnectedAt = now
	}
	listeners := r.snapshotListenersLocked()
	r.mu.Unlock()

	r.notify(listeners)
}

// UpdateStatus flips the project's connected flag. Unknown projects are
// ignored. ConnectedAt refreshes only on a false-to-true transition, so a
// redundant "still connected" update preserves the original timestamp.
func (r *Registry) UpdateStatus(projectName string, connected bool) {
	r.mu.Lock()
	rec, ok := r.records[projectName]
	if !ok {
		r.mu.Unlock()
		return
	}
	now := r.clock()
	if connected && !rec.Connected {
		rec.ConnectedAt = now
	}
	rec.Connected = connected
	rec.LastActivity = now
	listeners := r.snapshotListenersLocked()
	r.mu.Unlock()

	r.notify(listeners)
}

// Subscribe registers a listener and returns its removal function. The
// returned function is safe to call more than once.
func (r *Registry) Subscribe(fn Listener) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

// List returns a copied snapshot of every record, ordered by project name.
func (r *Registry) List() []Record {
	r.mu.Lock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ProjectName < out[j].ProjectName })
	return out
}

// ListConnected returns a copied snapshot of only the connected records.
func (r *Registry) ListConnected() []Record {
	all := r.List()
	out := all[:0]
	for _, rec := range all {
		if rec.Connected {
			out = append(out, rec)
		}
	}
	return out
}

// Close drops every record and listener.
func (r *Registry) Close() {
	r.mu.Lock()
	r.records = make(map[string]*Record)
	r.listeners = make(map[int]Listener)
	r.closed = true
	r.mu.Unlock()
}

func (r *Registry) snapshotListenersLocked() []Listener {
	out := make([]Listener, 0, len(r.listeners))
	for _, fn := range r.listeners {
		out = append(out, fn)
	}
	return out
}

// notify runs outside the lock so listeners may call back into the registry.
func (r *Registry) notify(listeners []Listener) {
	for _, fn := range listeners {
		fn()
	}
}
