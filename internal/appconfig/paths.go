package appconfig

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
)

// PathResolver turns cwd-relative paths in a config into absolute ones.
type PathResolver interface {
	ResolveAppPaths(cfg AppConfig, baseDir string) (AppConfig, error)
}

// ResolverFunc adapts a function to PathResolver.
type ResolverFunc func(cfg AppConfig, baseDir string) (AppConfig, error)

// ResolveAppPaths implements PathResolver.
func (f ResolverFunc) ResolveAppPaths(cfg AppConfig, baseDir string) (AppConfig, error) {
	return f(cfg, baseDir)
}

// DefaultResolver resolves the script and log files against baseDir. A
// missing script is accepted; a script that is a directory is not.
type DefaultResolver struct{}

var errScriptIsDir = errors.New("script path is a directory")

// ResolveAppPaths implements PathResolver. The input is not modified.
func (DefaultResolver) ResolveAppPaths(cfg AppConfig, baseDir string) (AppConfig, error) {
	out := maps.Clone(cfg)
	execPath := absFrom(baseDir, cfg.Script())
	if info, err := os.Stat(execPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: %s", errScriptIsDir, execPath)
	}
	out[KeyExecPath] = execPath
	out[KeyPmCwd] = baseDir

	for _, key := range []string{KeyOutFile, KeyErrorFile, KeyPidFile} {
		if p, ok := cfg[key].(string); ok && p != "" {
			out[key] = absFrom(baseDir, p)
		}
	}
	return out, nil
}

func absFrom(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
