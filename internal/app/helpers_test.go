package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"pmctl/internal/remote"
)

type call struct {
	Command string
	Args    any
}

// fakeExecutor records every interaction and answers from canned data.
type fakeExecutor struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	connected   bool
	calls       []call
	inflight    map[string]int
	maxInflight map[string]int

	// requireConn makes Execute fail unless Connect has been called.
	requireConn bool
	// connectGate, when set, blocks Connect until closed.
	connectGate chan struct{}
	// execGate, when set, blocks getMonitorData until closed.
	execGate chan struct{}
	// onDisconnect runs inside Disconnect.
	onDisconnect func()

	procs   []Process
	version string
	failIDs map[int]error
	listErr error
}

func newFakeExecutor(procs ...Process) *fakeExecutor {
	return &fakeExecutor{
		requireConn: true,
		inflight:    make(map[string]int),
		maxInflight: make(map[string]int),
		procs:       procs,
		version:     "5.3.0",
		failIDs:     make(map[int]error),
	}
}

func (f *fakeExecutor) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	gate := f.connectGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeExecutor) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	f.disconnects++
	f.connected = false
	hook := f.onDisconnect
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeExecutor) Execute(ctx context.Context, command string, args, reply any) error {
	f.mu.Lock()
	if f.requireConn && !f.connected {
		f.mu.Unlock()
		return remote.ErrNotConnected
	}
	f.calls = append(f.calls, call{Command: command, Args: args})
	f.inflight[command]++
	if f.inflight[command] > f.maxInflight[command] {
		f.maxInflight[command] = f.inflight[command]
	}
	gate := f.execGate
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight[command]--
		f.mu.Unlock()
	}()

	var result any
	switch command {
	case remote.CmdGetMonitorData:
		if gate != nil {
			<-gate
		}
		if f.listErr != nil {
			return f.listErr
		}
		result = f.procs
	case remote.CmdGetVersion:
		result = f.version
	case remote.CmdPrepare:
		result = []Process{{ID: 99, Name: "created"}}
	case remote.CmdNotifyByProcessID:
		return nil
	default:
		// Give a concurrent caller a chance to overlap.
		time.Sleep(time.Millisecond)
		if ra, ok := args.(restartArgs); ok {
			if err, fail := f.failIDs[ra.ID]; fail {
				return err
			}
		}
		return nil
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

func (f *fakeExecutor) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects
}

func (f *fakeExecutor) commands(name string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Command == name {
			out = append(out, c)
		}
	}
	return out
}

// manualScheduler queues idle checks until the test flushes them.
type manualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (s *manualScheduler) Schedule(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
}

func (s *manualScheduler) Flush() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		fn()
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestApp(t *testing.T, exec *fakeExecutor, opts Options) (*App, *manualScheduler) {
	t.Helper()
	sched := &manualScheduler{}
	if opts.Scheduler == nil {
		opts.Scheduler = sched
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	return New(exec, opts), sched
}

func waitIdle(t *testing.T, a *App) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, pending := a.conn.snapshot()
		return pending == 0
	}, 2*time.Second, time.Millisecond)
}

func proc(id int, name, path string, port int) Process {
	return Process{ID: id, Name: name, Env: ProcessEnv{ExecPath: path, Port: Port(port), Status: "online"}}
}

var errBoom = errors.New("boom")
