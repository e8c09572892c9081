package daemon

import (
	"fmt"
	"strconv"

	"pmctl/internal/registry"
)

// processInfo is the monitor-data shape clients decode: top-level identity
// plus a pm2_env block carrying the app config and runtime state.
type processInfo struct {
	ID    int            `json:"pm_id"`
	Name  string         `json:"name"`
	PID   int            `json:"pid"`
	Env   map[string]any `json:"pm2_env"`
	Monit monit          `json:"monit"`
}

type monit struct {
	CPU    float64 `json:"cpu"`
	Memory uint64  `json:"memory"`
}

func describe(p registry.Proc, u usage) processInfo {
	env := make(map[string]any, len(p.Config)+8)
	for k, v := range p.Config {
		env[k] = v
	}
	if _, ok := env["port"]; !ok {
		if port, ok := p.Env["PORT"]; ok {
			env["port"] = port
		}
	}
	env["pm_id"] = int(p.ID)
	env["name"] = p.Name
	env["status"] = string(p.Status)
	env["restart_time"] = p.RestartTime
	env["created_at"] = p.CreatedAt.UnixMilli()
	if len(p.Env) > 0 {
		env["env"] = p.Env
	}
	return processInfo{
		ID:    int(p.ID),
		Name:  p.Name,
		PID:   p.PID,
		Env:   env,
		Monit: monit{CPU: u.CPU, Memory: u.Memory},
	}
}

func configString(cfg map[string]any, key string) string {
	switch v := cfg[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func configInt(cfg map[string]any, key string) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
