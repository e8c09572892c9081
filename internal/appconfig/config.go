// Package appconfig turns caller-supplied application options into the
// canonical form the daemon's prepare command expects.
package appconfig

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Canonical option keys.
const (
	KeyScript         = "script"
	KeyName           = "name"
	KeyArgs           = "args"
	KeyNodeArgs       = "node_args"
	KeyExecMode       = "exec_mode"
	KeyExecInterp     = "exec_interpreter"
	KeyExecuteCommand = "execute_command"
	KeyInstances      = "instances"
	KeyRawArgs        = "raw_args"
	KeyCwd            = "cwd"
	KeyOutFile        = "out_file"
	KeyErrorFile      = "error_file"
	KeyPidFile        = "pid_file"
	KeyExecPath       = "pm_exec_path"
	KeyPmCwd          = "pm_cwd"
	KeyEnv            = "env"
)

// Execution modes.
const (
	ForkMode    = "fork_mode"
	ClusterMode = "cluster_mode"
)

// AppConfig is a normalized application description. Keys are snake_case;
// unknown options are carried through untouched.
type AppConfig map[string]any

// Script returns the mandatory script path.
func (c AppConfig) Script() string { return c.str(KeyScript) }

// Name returns the application name.
func (c AppConfig) Name() string { return c.str(KeyName) }

// ExecMode returns fork_mode or cluster_mode.
func (c AppConfig) ExecMode() string { return c.str(KeyExecMode) }

// Interpreter returns the exec_interpreter option.
func (c AppConfig) Interpreter() string { return c.str(KeyExecInterp) }

// ExecPath returns the absolute script path set by the path resolver.
func (c AppConfig) ExecPath() string { return c.str(KeyExecPath) }

// Cwd returns the resolved working directory.
func (c AppConfig) Cwd() string { return c.str(KeyPmCwd) }

// NodeArgs returns the interpreter arguments.
func (c AppConfig) NodeArgs() []string {
	out, _ := c[KeyNodeArgs].([]string)
	return out
}

// Args returns the serialized script arguments, or "" when unset.
func (c AppConfig) Args() string { return c.str(KeyArgs) }

// ArgList decodes Args back into a list. A non-list JSON value becomes a
// single argument.
func (c AppConfig) ArgList() ([]string, error) {
	raw := c.Args()
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return strings.Fields(raw), nil
	}
	switch v := generic.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out, nil
	case string:
		return strings.Fields(v), nil
	default:
		return []string{fmt.Sprint(v)}, nil
	}
}

// Instances returns the requested instance count, at least 1.
func (c AppConfig) Instances() int {
	n, ok := toInt(c[KeyInstances])
	if !ok || n < 1 {
		return 1
	}
	return n
}

// Env returns the configured environment overrides.
func (c AppConfig) Env() map[string]string {
	out := make(map[string]string)
	switch env := c[KeyEnv].(type) {
	case map[string]string:
		for k, v := range env {
			out[k] = v
		}
	case map[string]any:
		for k, v := range env {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

func (c AppConfig) str(key string) string {
	s, _ := c[key].(string)
	return s
}

func (c AppConfig) has(key string) bool {
	return truthy(c[key])
}

// truthy mirrors loose option semantics: absent, empty and zero values
// count as unset.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case json.Number:
		n, err := x.Int64()
		return int(n), err == nil
	case string:
		var n int
		_, err := fmt.Sscanf(x, "%d", &n)
		return n, err == nil
	default:
		return 0, false
	}
}
