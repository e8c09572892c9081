package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/renameio/v2"
)

// Snapshot schema versioning for forward-compatibility.
const snapshotVersion = 2

type snapshot struct {
	Version int    `cbor:"version"`
	NextID  int    `cbor:"next_id"`
	Procs   []Proc `cbor:"procs"`
	Created int64  `cbor:"created_unix"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("registry: CBOR encoder initialization failed: " + err.Error())
	}

	// App configs are map[string]any; nested maps must decode the same way
	// or the daemon would hand map[any]any to encoding/json.
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("registry: CBOR decoder initialization failed: " + err.Error())
	}
}

func (r *Registry) loadSnapshot(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var s snapshot
	if err := decMode.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if s.Version != snapshotVersion {
		r.logger.Warn("ignoring snapshot with unknown version", "path", path, "version", s.Version)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID = ProcID(s.NextID)
	r.byID = make(map[ProcID]*Proc, len(s.Procs))
	r.byName = make(map[string]map[ProcID]struct{})
	for i := range s.Procs {
		proc := s.Procs[i]
		if proc.ID >= r.nextID {
			r.nextID = proc.ID + 1
		}
		r.indexLocked(&proc)
	}
	return nil
}

func (r *Registry) saveSnapshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	r.mu.RLock()
	s := snapshot{
		Version: snapshotVersion,
		NextID:  int(r.nextID),
		Created: now().Unix(),
	}
	s.Procs = make([]Proc, 0, len(r.byID))
	for _, id := range r.sortedIDsLocked() {
		s.Procs = append(s.Procs, r.byID[id].clone())
	}
	r.mu.RUnlock()

	b, err := encMode.Marshal(s)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, b, 0o600)
}
