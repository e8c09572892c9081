package app

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
)

// Process mirrors one entry of the daemon's monitor data.
type Process struct {
	ID    int        `json:"pm_id"`
	Name  string     `json:"name"`
	PID   int        `json:"pid"`
	Env   ProcessEnv `json:"pm2_env"`
	Monit Monit      `json:"monit"`
}

// ProcessEnv is the configuration snapshot the daemon keeps per process.
type ProcessEnv struct {
	ExecPath    string `json:"pm_exec_path"`
	Cwd         string `json:"pm_cwd,omitempty"`
	Port        Port   `json:"port,omitempty"`
	Status      string `json:"status"`
	ExecMode    string `json:"exec_mode,omitempty"`
	Interpreter string `json:"exec_interpreter,omitempty"`
	RestartTime int    `json:"restart_time"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

// Monit holds resource usage sampled by the daemon.
type Monit struct {
	CPU    float64 `json:"cpu"`
	Memory uint64  `json:"memory"`
}

// Port is a listening port. The daemon reports it either as a number or as
// a numeric string; both decode to the same value and anything else to 0.
type Port int

// UnmarshalJSON implements json.Unmarshaler.
func (p *Port) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			*p = 0
			return nil
		}
		*p = Port(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*p = 0
		return nil
	}
	*p = Port(f)
	return nil
}

// Spec narrows an operation to a subset of processes. Unset fields do not
// constrain; set fields combine with AND.
type Spec struct {
	ID     *int
	Name   string
	Script string
	Port   *int
	Path   string
}

// IDSpec selects a single process by id.
func IDSpec(id int) Spec {
	return Spec{ID: &id}
}

// Empty reports whether the spec selects every process.
func (s Spec) Empty() bool {
	return s.ID == nil && s.Name == "" && s.Script == "" && s.Port == nil && s.Path == ""
}

// Matches reports whether p satisfies every constraint of s.
func (s Spec) Matches(p Process) bool {
	if s.ID != nil && p.ID != *s.ID {
		return false
	}
	if s.Name != "" && p.Name != s.Name {
		return false
	}
	if s.Script != "" && filepath.Base(p.Env.ExecPath) != s.Script {
		return false
	}
	if s.Port != nil && int(p.Env.Port) != *s.Port {
		return false
	}
	if s.Path != "" && p.Env.ExecPath != s.Path {
		return false
	}
	return true
}

func filterProcesses(procs []Process, spec Spec) []Process {
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		if spec.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}
