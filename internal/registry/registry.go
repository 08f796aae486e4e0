package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// SelfName is the record representing the orchestrator itself. It is
// never supervised and never probed; its status is pinned to running.
const SelfName = "mainServer"

// Descriptor is the static per-service configuration known before any
// process starts. Descriptors are immutable after Build.
type Descriptor struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Port        int      `json:"port"`
	HealthURL   string   `json:"health_url,omitempty"` // empty for the self record
	Commands    []string `json:"commands,omitempty"`   // ordered launch candidates
	LogDir      string   `json:"log_dir,omitempty"`
}

// PublicView is the externally visible slice of a service record.
// The process handle is ownership state of the supervisor and is
// deliberately absent here.
type PublicView struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Port   int    `json:"port"`
	URL    string `json:"url,omitempty"`
}

// ChangeFunc is invoked after every status transition, once the new view
// is visible to readers. It runs outside the registry lock.
type ChangeFunc func(name string, prev Status, view PublicView)

type record struct {
	desc      Descriptor
	status    Status
	changedAt time.Time
}

// Registry is the single shared table of service records. It is built
// once at startup and only mutated through SetStatus, which keeps the
// mutate-then-notify sequence in one place.
type Registry struct {
	mu       sync.RWMutex
	records  map[string]*record
	onChange ChangeFunc
}

// Build constructs the table from descriptors and adds the self record.
// Every non-self service begins disconnected.
func Build(descs []Descriptor) (*Registry, error) {
	r := &Registry{records: make(map[string]*record, len(descs)+1)}
	for _, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("service descriptor without name")
		}
		if d.Name == SelfName {
			return nil, fmt.Errorf("service name %q is reserved", SelfName)
		}
		if _, dup := r.records[d.Name]; dup {
			return nil, fmt.Errorf("duplicate service name %q", d.Name)
		}
		r.records[d.Name] = &record{desc: d, status: StatusDisconnected, changedAt: time.Now()}
	}
	r.records[SelfName] = &record{
		desc:      Descriptor{Name: SelfName, DisplayName: "Main Server"},
		status:    StatusRunning,
		changedAt: time.Now(),
	}
	return r, nil
}

// OnChange registers the callback fired after each transition. It must be
// set before the supervisor or health loop runs.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	if !ok {
		return Descriptor{}, false
	}
	return rec.desc, true
}

// Names returns all service names, self included, sorted for stable output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.records))
	for n := range r.records {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Probed returns the descriptors of every service that carries a health
// URL, i.e. everything the health loop should visit.
func (r *Registry) Probed() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.records))
	for _, rec := range r.records {
		if rec.desc.HealthURL != "" {
			out = append(out, rec.desc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Status returns the current status for name.
func (r *Registry) Status(name string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	if !ok {
		return "", false
	}
	return rec.status, true
}

// View returns the public view for a single service.
func (r *Registry) View(name string) (PublicView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	if !ok {
		return PublicView{}, false
	}
	return viewOf(rec), true
}

// Snapshot returns the full public table keyed by service name.
func (r *Registry) Snapshot() map[string]PublicView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]PublicView, len(r.records))
	for n, rec := range r.records {
		out[n] = viewOf(rec)
	}
	return out
}

// SetStatus mutates a record and reports whether the status actually
// changed. The self record is immutable. The change callback fires only
// on a real transition, so callers get change-only broadcasting for free.
func (r *Registry) SetStatus(name string, st Status) (changed bool) {
	if !st.Valid() {
		return false
	}
	r.mu.Lock()
	rec, ok := r.records[name]
	if !ok || name == SelfName || rec.status == st {
		r.mu.Unlock()
		return false
	}
	prev := rec.status
	rec.status = st
	rec.changedAt = time.Now()
	view := viewOf(rec)
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(name, prev, view)
	}
	return true
}

func viewOf(rec *record) PublicView {
	return PublicView{
		Name:   rec.desc.Name,
		Status: rec.status,
		Port:   rec.desc.Port,
		URL:    rec.desc.HealthURL,
	}
}
