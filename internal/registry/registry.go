package registry

import (
	"errors"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrNotFound is returned for ids the registry does not know.
var ErrNotFound = errors.New("process not found")

// Registry is a threadsafe in-memory catalog of managed processes,
// snapshotted to disk after every change.
type Registry struct {
	mu     sync.RWMutex
	nextID ProcID
	byID   map[ProcID]*Proc
	byName map[string]map[ProcID]struct{}
	// Interval between persisted lastSeen bumps while a process remains alive.
	lastSeenInterval time.Duration
	logger           *log.Logger

	// Where to snapshot. If empty, snapshotting is disabled.
	SnapshotPath string
}

// New loads the snapshot if present and returns a ready registry.
func New(snapshotPath string, lastSeenInterval time.Duration, logger *log.Logger) (*Registry, error) {
	if lastSeenInterval <= 0 {
		lastSeenInterval = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	r := &Registry{
		byID:             make(map[ProcID]*Proc),
		byName:           make(map[string]map[ProcID]struct{}),
		SnapshotPath:     snapshotPath,
		lastSeenInterval: lastSeenInterval,
		logger:           logger,
	}
	if snapshotPath != "" {
		if err := r.loadSnapshot(snapshotPath); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a new, not yet started process.
func (r *Registry) Add(name string, cfg map[string]any, env map[string]string) (Proc, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Proc{}, err
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	p := &Proc{
		ID:        id,
		Name:      name,
		Status:    StatusLaunching,
		Config:    maps.Clone(cfg),
		Env:       maps.Clone(env),
		CreatedAt: now(),
	}
	r.indexLocked(p)
	out := p.clone()
	r.mu.Unlock()

	r.maybeSave()
	return out, nil
}

// Update applies fn to the stored process and returns the result. The name
// and id cannot be changed through Update.
func (r *Registry) Update(id ProcID, fn func(*Proc)) (Proc, error) {
	r.mu.Lock()
	p := r.byID[id]
	if p == nil {
		r.mu.Unlock()
		return Proc{}, errNotFound(id)
	}
	name := p.Name
	fn(p)
	p.ID, p.Name = id, name
	out := p.clone()
	r.mu.Unlock()

	r.maybeSave()
	return out, nil
}

// Remove deletes an entry by ID and returns it.
func (r *Registry) Remove(id ProcID) (Proc, bool) {
	r.mu.Lock()
	p := r.byID[id]
	if p == nil {
		r.mu.Unlock()
		return Proc{}, false
	}
	delete(r.byID, id)
	delete(r.byName[p.Name], id)
	if len(r.byName[p.Name]) == 0 {
		delete(r.byName, p.Name)
	}
	r.mu.Unlock()

	r.maybeSave()
	return p.clone(), true
}

// SetAlive records a liveness probe result. A process found dead while
// online becomes stopped. It reports whether anything changed.
func (r *Registry) SetAlive(id ProcID, alive bool) bool {
	r.mu.Lock()

	p := r.byID[id]
	if p == nil {
		r.mu.Unlock()
		return false
	}

	changed := false
	if !alive && p.Status == StatusOnline {
		p.Status = StatusStopped
		p.PID, p.PGID = 0, 0
		changed = true
	}
	if alive {
		now := now()
		if p.LastSeen.IsZero() || now.Sub(p.LastSeen) >= r.lastSeenInterval {
			p.LastSeen = now
			changed = true
		}
	}
	r.mu.Unlock()

	if changed {
		r.maybeSave()
	}
	return changed
}

// Reset clears the registry and resets the ID counter.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.nextID = 0
	r.byID = make(map[ProcID]*Proc)
	r.byName = make(map[string]map[ProcID]struct{})
	r.mu.Unlock()

	r.maybeSave()
}

// Get returns a copy of a Proc by ID.
func (r *Registry) Get(id ProcID) (Proc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.byID[id]
	if p == nil {
		return Proc{}, false
	}
	return p.clone(), true
}

// List returns matching processes, sorted by ID asc.
func (r *Registry) List(f ListFilter) []Proc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.sortedIDsLocked()

	if len(f.IDs) > 0 {
		set := make(map[ProcID]struct{}, len(f.IDs))
		for _, id := range f.IDs {
			set[id] = struct{}{}
		}
		ids = filterIDs(ids, func(id ProcID) bool {
			_, ok := set[id]
			return ok
		})
	}

	if len(f.Names) > 0 {
		nameSet := make(map[ProcID]struct{})
		for _, n := range f.Names {
			for id := range r.byName[n] {
				nameSet[id] = struct{}{}
			}
		}
		ids = filterIDs(ids, func(id ProcID) bool {
			_, ok := nameSet[id]
			return ok
		})
	}

	if f.OnlineOnly {
		ids = filterIDs(ids, func(id ProcID) bool {
			return r.byID[id].Online()
		})
	}

	out := make([]Proc, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id].clone())
	}
	return out
}

func (r *Registry) indexLocked(p *Proc) {
	r.byID[p.ID] = p
	if _, ok := r.byName[p.Name]; !ok {
		r.byName[p.Name] = make(map[ProcID]struct{})
	}
	r.byName[p.Name][p.ID] = struct{}{}
}

func (r *Registry) sortedIDsLocked() []ProcID {
	ids := make([]ProcID, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// maybeSave performs a best-effort snapshot write if a path is configured.
func (r *Registry) maybeSave() {
	if r.SnapshotPath == "" {
		return
	}
	if err := r.saveSnapshot(r.SnapshotPath); err != nil {
		r.logger.Error("registry snapshot failed", "path", r.SnapshotPath, "err", err)
	}
}

func filterIDs(ids []ProcID, keep func(ProcID) bool) []ProcID {
	dst := ids[:0]
	for _, id := range ids {
		if keep(id) {
			dst = append(dst, id)
		}
	}
	return dst
}
