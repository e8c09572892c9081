package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pmctl/internal/config"
	"pmctl/internal/remote"
)

type stubExecutor struct {
	mu         sync.Mutex
	connectErr error
	pingReply  string
	procs      []map[string]any
	failIDs    map[int]bool
	executed   []string
	prepared   []map[string]any
}

func (s *stubExecutor) Connect(context.Context) error    { return s.connectErr }
func (s *stubExecutor) Disconnect(context.Context) error { return nil }

func (s *stubExecutor) Execute(ctx context.Context, command string, args, reply any) error {
	s.mu.Lock()
	s.executed = append(s.executed, command)
	s.mu.Unlock()

	var result any
	switch command {
	case remote.CmdPing:
		result = s.pingReply
	case remote.CmdGetVersion:
		result = "9.9.9"
	case remote.CmdGetMonitorData:
		result = s.procs
	case remote.CmdPrepare:
		data, _ := json.Marshal(args)
		var cfg map[string]any
		_ = json.Unmarshal(data, &cfg)
		s.mu.Lock()
		s.prepared = append(s.prepared, cfg)
		s.mu.Unlock()
		result = []map[string]any{{"pm_id": 7, "name": cfg["name"], "pid": 100}}
	default:
		data, _ := json.Marshal(args)
		var target struct {
			ID int `json:"id"`
		}
		_ = json.Unmarshal(data, &target)
		if s.failIDs[target.ID] && command != remote.CmdNotifyByProcessID {
			return errors.New("refused")
		}
	}
	if reply == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, reply)
}

func (s *stubExecutor) ran(command string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.executed {
		if c == command {
			n++
		}
	}
	return n
}

func withExecutor(t *testing.T, stub *stubExecutor) {
	t.Helper()
	orig := executorFactory
	executorFactory = func(config.Config) remote.Executor {
		return stub
	}
	t.Cleanup(func() {
		executorFactory = orig
	})
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func sampleProcs() []map[string]any {
	return []map[string]any{
		{"pm_id": 0, "name": "api", "pid": 11, "pm2_env": map[string]any{"status": "online", "pm_exec_path": "/srv/api.js", "port": "3000"}},
		{"pm_id": 1, "name": "web", "pid": 12, "pm2_env": map[string]any{"status": "online", "pm_exec_path": "/srv/web.js", "port": 8080}},
		{"pm_id": 2, "name": "api", "pid": 13, "pm2_env": map[string]any{"status": "online", "pm_exec_path": "/srv/api.js", "port": 3001}},
	}
}

func TestListPrintsTable(t *testing.T) {
	withExecutor(t, &stubExecutor{procs: sampleProcs()})

	out, err := runCLI(t, "list", "--name", "web")
	require.NoError(t, err)
	require.Contains(t, out, "web")
	require.NotContains(t, out, "api")
	require.Contains(t, out, "online")
}

func TestStopRequiresSelector(t *testing.T) {
	stub := &stubExecutor{procs: sampleProcs()}
	withExecutor(t, stub)

	_, err := runCLI(t, "stop")
	require.ErrorContains(t, err, "no selector")
	require.Zero(t, stub.ran(remote.CmdStopProcessID))
}

func TestRestartReportsPartialFailure(t *testing.T) {
	stub := &stubExecutor{procs: sampleProcs(), failIDs: map[int]bool{2: true}}
	withExecutor(t, stub)

	out, err := runCLI(t, "restart", "--script", "api.js")
	require.Error(t, err)
	require.Contains(t, err.Error(), "restart process 2")
	require.Contains(t, out, "Restarted [id=0] api")
	require.NotContains(t, out, "[id=2]")
	require.Equal(t, 2, stub.ran(remote.CmdRestartProcessID))
}

func TestDeleteByPort(t *testing.T) {
	stub := &stubExecutor{procs: sampleProcs()}
	withExecutor(t, stub)

	out, err := runCLI(t, "delete", "--port", "3000")
	require.NoError(t, err)
	require.Equal(t, "Deleted [id=0] api\n", out)
	require.Equal(t, 1, stub.ran(remote.CmdDeleteProcessID))
}

func resetCreateFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		createFile, createName, createCwd, createInterp = "", "", "", ""
		createInstances = 0
	})
}

func TestCreateWithScriptArgs(t *testing.T) {
	stub := &stubExecutor{}
	withExecutor(t, stub)
	resetCreateFlags(t)

	out, err := runCLI(t, "create", "--name", "srv", "server.js", "--", "--port", "80")
	require.NoError(t, err)
	require.Contains(t, out, "Launched [id=7] srv pid=100")

	require.Len(t, stub.prepared, 1)
	cfg := stub.prepared[0]
	require.Equal(t, "srv", cfg["name"])
	require.Equal(t, `["--port","80"]`, cfg["args"])
	require.Equal(t, "fork_mode", cfg["exec_mode"])
}

func TestCreateFromYAML(t *testing.T) {
	stub := &stubExecutor{}
	withExecutor(t, stub)
	resetCreateFlags(t)

	path := filepath.Join(t.TempDir(), "apps.yaml")
	content := strings.Join([]string{
		"apps:",
		"  - script: api.js",
		"    instances: 2",
		"  - script: worker.py",
		"    executeCommand: true",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := runCLI(t, "create", "-f", path)
	require.NoError(t, err)
	require.Len(t, stub.prepared, 2)
	require.Equal(t, "cluster_mode", stub.prepared[0]["exec_mode"])
	require.Equal(t, "python", stub.prepared[1]["exec_interpreter"])
}

func TestCreateRejectsMissingScript(t *testing.T) {
	stub := &stubExecutor{}
	withExecutor(t, stub)
	resetCreateFlags(t)

	path := filepath.Join(t.TempDir(), "apps.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: nameless\n"), 0o600))

	_, err := runCLI(t, "create", "-f", path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "script")
	require.Zero(t, stub.ran(remote.CmdPrepare))
}

func TestVersion(t *testing.T) {
	withExecutor(t, &stubExecutor{})

	out, err := runCLI(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "daemon 9.9.9")
}

func TestNoAutoConnectFlag(t *testing.T) {
	stub := &stubExecutor{connectErr: errors.New("daemon down")}
	withExecutor(t, stub)
	t.Cleanup(func() { noAutoConnect = false })

	_, err := runCLI(t, "version", "--no-autoconnect")
	require.ErrorContains(t, err, "daemon down")
	require.Zero(t, stub.ran(remote.CmdGetVersion))
}
