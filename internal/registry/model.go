package registry

import (
	"maps"
	"time"
)

// ProcID is the daemon-assigned identifier of a managed process. IDs start
// at 0 and are never reused until Reset.
type ProcID int

// Status is the lifecycle state of a managed process.
type Status string

const (
	StatusLaunching Status = "launching"
	StatusOnline    Status = "online"
	StatusStopping  Status = "stopping"
	StatusStopped   Status = "stopped"
	StatusErrored   Status = "errored"
)

// Proc is one managed process. Values handed out by the registry are
// copies; mutate through Update.
type Proc struct {
	ID          ProcID            `cbor:"id"`
	Name        string            `cbor:"name"`
	PID         int               `cbor:"pid"`
	PGID        int               `cbor:"pgid"`
	Status      Status            `cbor:"status"`
	Config      map[string]any    `cbor:"config"`
	Env         map[string]string `cbor:"env,omitempty"`
	RestartTime int               `cbor:"restart_time"`
	CreatedAt   time.Time         `cbor:"created_at"`
	LastSeen    time.Time         `cbor:"last_seen"`
}

// Online reports whether the process is believed to be running.
func (p Proc) Online() bool {
	return p.Status == StatusOnline && p.PID > 0
}

func (p Proc) clone() Proc {
	p.Config = maps.Clone(p.Config)
	p.Env = maps.Clone(p.Env)
	return p
}

// ListFilter narrows a registry query. Empty fields do not constrain.
type ListFilter struct {
	IDs        []ProcID
	Names      []string
	OnlineOnly bool
}
