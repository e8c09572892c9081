package appconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestNormalizeScriptString(t *testing.T) {
	cfg, err := Normalize("myapp.js")
	require.NoError(t, err)
	require.Equal(t, "myapp.js", cfg.Script())
	require.Equal(t, "myapp", cfg.Name())
	require.Equal(t, ForkMode, cfg.ExecMode())
	require.Equal(t, []string{}, cfg[KeyNodeArgs])

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(wd, "myapp.js"), cfg.ExecPath())
	require.Equal(t, wd, cfg.Cwd())
}

func TestNormalizeMissingScript(t *testing.T) {
	_, err := Normalize(map[string]any{})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMissingField)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, KeyScript, verr.Field)
}

func TestNormalizeRejectsUnsupportedType(t *testing.T) {
	_, err := Normalize(42)
	require.ErrorIs(t, err, ErrInvalidOptions)
}

func TestNormalizeInstancesSelectCluster(t *testing.T) {
	cfg, err := Normalize(map[string]any{"script": "a.js", "instances": 4})
	require.NoError(t, err)
	require.Equal(t, ClusterMode, cfg.ExecMode())
	require.Equal(t, 4, cfg.Instances())
}

func TestNormalizeExecuteCommandForcesFork(t *testing.T) {
	cfg, err := Normalize(map[string]any{
		"script":         "worker.py",
		"instances":      2,
		"executeCommand": true,
	})
	require.NoError(t, err)
	require.Equal(t, ForkMode, cfg.ExecMode())
	require.Equal(t, "python", cfg.Interpreter())
}

func TestNormalizeExplicitExecModeWins(t *testing.T) {
	cfg, err := Normalize(map[string]any{"script": "a.js", "execMode": ClusterMode})
	require.NoError(t, err)
	require.Equal(t, ClusterMode, cfg.ExecMode())
}

func TestNormalizeInterpreterInference(t *testing.T) {
	cases := map[string]string{
		"run.sh":    "bash",
		"app.rb":    "ruby",
		"index.js":  "node",
		"tool.pl":   "perl",
		"server.go": "none",
		"binary":    "none",
	}
	for script, want := range cases {
		t.Run(script, func(t *testing.T) {
			cfg, err := Normalize(map[string]any{"script": script, "execute_command": true})
			require.NoError(t, err)
			require.Equal(t, want, cfg.Interpreter())
		})
	}
}

func TestNormalizeKeepsExplicitInterpreter(t *testing.T) {
	cfg, err := Normalize(map[string]any{
		"script":         "run.sh",
		"executeCommand": true,
		"interpreter":    "zsh",
	})
	require.NoError(t, err)
	require.Equal(t, "zsh", cfg.Interpreter())
	require.NotContains(t, cfg, "interpreter")
}

func TestNormalizeRenamesKeys(t *testing.T) {
	cfg, err := Normalize(map[string]any{
		"script":      "a.js",
		"scriptArgs":  []any{"--port", 80},
		"error":       "logs/err.log",
		"output":      "logs/out.log",
		"pid":         "run/a.pid",
		"cron":        "0 * * * *",
		"maxMemory":   "200M",
		"minUptimeMs": 100,
	})
	require.NoError(t, err)

	require.Equal(t, `["--port",80]`, cfg.Args())
	require.Equal(t, "0 * * * *", cfg["cron_restart"])
	require.Equal(t, "200M", cfg["max_memory"])
	require.Equal(t, 100, cfg["min_uptime_ms"])
	require.True(t, filepath.IsAbs(cfg[KeyErrorFile].(string)))
	require.True(t, filepath.IsAbs(cfg[KeyOutFile].(string)))
	require.True(t, filepath.IsAbs(cfg[KeyPidFile].(string)))
	for _, old := range []string{"scriptArgs", "script_args", "error", "output", "pid", "cron"} {
		require.NotContains(t, cfg, old)
	}
}

func TestCanonicalKey(t *testing.T) {
	cases := map[string]string{
		"scriptArgs":      "args",
		"nodeArgs":        "node_args",
		"execInterpreter": "exec_interpreter",
		"interpreter":     "exec_interpreter",
		"name":            "name",
		"HTTPPort":        "HTTPPort",
		"already_snake":   "already_snake",
	}
	for in, want := range cases {
		require.Equal(t, want, canonicalKey(in), in)
	}
}

func TestCanonicalKeyKeepsMultibyteRunes(t *testing.T) {
	got := canonicalKey("cafèName")
	require.Equal(t, "cafè_name", got)
	require.True(t, utf8.ValidString(got))

	require.Equal(t, "über_größe", canonicalKey("überGröße"))
}

func TestNormalizeNodeArgs(t *testing.T) {
	cfg, err := Normalize(map[string]any{"script": "a.js", "nodeArgs": "--harmony  --max-old-space-size=512"})
	require.NoError(t, err)
	require.Equal(t, []string{"--harmony", "--max-old-space-size=512"}, cfg.NodeArgs())

	cfg, err = Normalize(map[string]any{"script": "a.js", "node_args": []any{"--inspect"}})
	require.NoError(t, err)
	require.Equal(t, []string{"--inspect"}, cfg.NodeArgs())

	cfg, err = Normalize(map[string]any{"script": "a.js", "node_args": 12})
	require.NoError(t, err)
	require.Equal(t, []string{}, cfg.NodeArgs())
}

func TestNormalizeStringArgsUntouched(t *testing.T) {
	cfg, err := Normalize(map[string]any{"script": "a.js", "args": "--verbose"})
	require.NoError(t, err)
	require.Equal(t, "--verbose", cfg.Args())
	require.NotContains(t, mustConfig(Normalize("a.js")), KeyArgs)
}

func TestNormalizeRawArgsOverrideArgs(t *testing.T) {
	cfg, err := Normalize(map[string]any{
		"script":   "a.js",
		"args":     []any{"ignored"},
		"raw_args": []any{"node", "a.js", "--", "--port", "8080"},
	})
	require.NoError(t, err)
	require.Equal(t, `["--port","8080"]`, cfg.Args())

	list, err := cfg.ArgList()
	require.NoError(t, err)
	require.Equal(t, []string{"--port", "8080"}, list)
}

func TestNormalizeRawArgsWithoutSeparator(t *testing.T) {
	cfg, err := Normalize(map[string]any{
		"script":   "a.js",
		"args":     "keep",
		"raw_args": []string{"node", "a.js", "--port"},
	})
	require.NoError(t, err)
	require.Equal(t, "keep", cfg.Args())
}

func TestNormalizeUsesCwd(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Normalize(map[string]any{"script": "srv.js", "cwd": dir, "output": "out.log"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "srv.js"), cfg.ExecPath())
	require.Equal(t, filepath.Join(dir, "out.log"), cfg[KeyOutFile])
	require.Equal(t, dir, cfg.Cwd())
}

func TestNormalizeResolverFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "app"), 0o755))

	_, err := Normalize(map[string]any{"script": "app", "cwd": dir})
	require.ErrorIs(t, err, errScriptIsDir)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestNormalizeCustomResolver(t *testing.T) {
	called := false
	n := Normalizer{Resolver: ResolverFunc(func(cfg AppConfig, baseDir string) (AppConfig, error) {
		called = true
		require.True(t, filepath.IsAbs(baseDir))
		return nil, errors.New("resolver exploded")
	})}
	_, err := n.Normalize("x.js")
	require.True(t, called)
	require.EqualError(t, err, "invalid app config: resolver exploded")
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := map[string]any{"script": "a.js", "scriptArgs": []any{"x"}}
	_, err := Normalize(in)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"script": "a.js", "scriptArgs": []any{"x"}}, in)
}

func mustConfig(cfg AppConfig, err error) AppConfig {
	if err != nil {
		panic(err)
	}
	return cfg
}
