package daemon

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"pmctl/internal/registry"
)

// buildCommand turns a registered app into an exec.Cmd running in its own
// process group. The returned closer releases the log files.
func buildCommand(p registry.Proc) (*exec.Cmd, io.Closer, error) {
	cfg := p.Config
	script := configString(cfg, "pm_exec_path")
	if script == "" {
		script = configString(cfg, "script")
	}
	if script == "" {
		return nil, nil, fmt.Errorf("app %q has no script", p.Name)
	}

	args, err := scriptArgs(cfg["args"])
	if err != nil {
		return nil, nil, fmt.Errorf("app %q: %w", p.Name, err)
	}

	var cmd *exec.Cmd
	switch interp := configString(cfg, "exec_interpreter"); interp {
	case "", "none":
		cmd = exec.Command(script, args...)
	default:
		argv := append(stringSlice(cfg["node_args"]), script)
		cmd = exec.Command(interp, append(argv, args...)...)
	}
	cmd.Dir = configString(cfg, "pm_cwd")
	cmd.Env = processEnv(p)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	files := &fileSet{}
	if cmd.Stdout, err = files.open(configString(cfg, "out_file")); err != nil {
		files.Close()
		return nil, nil, err
	}
	if cmd.Stderr, err = files.open(configString(cfg, "error_file")); err != nil {
		files.Close()
		return nil, nil, err
	}
	return cmd, files, nil
}

// scriptArgs accepts the normalized JSON-encoded list, a plain string or a
// list.
func scriptArgs(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		if strings.HasPrefix(s, "[") {
			var list []any
			if err := json.Unmarshal([]byte(s), &list); err != nil {
				return nil, fmt.Errorf("decode args: %w", err)
			}
			return stringSlice(list), nil
		}
		return strings.Fields(s), nil
	default:
		return stringSlice(t), nil
	}
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}

// processEnv layers the daemon environment, the app's configured env, the
// caller-supplied env and the process identity, later entries winning.
func processEnv(p registry.Proc) []string {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}
	if env, ok := p.Config["env"].(map[string]any); ok {
		for k, v := range env {
			merged[k] = fmt.Sprint(v)
		}
	}
	for k, v := range p.Env {
		merged[k] = v
	}
	merged["pm_id"] = strconv.Itoa(int(p.ID))
	merged["name"] = p.Name

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}

type fileSet struct {
	files []*os.File
}

func (f *fileSet) open(path string) (io.Writer, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	f.files = append(f.files, file)
	return file, nil
}

func (f *fileSet) Close() error {
	var first error
	for _, file := range f.files {
		if err := file.Close(); err != nil && first == nil {
			first = err
		}
	}
	f.files = nil
	return first
}
