package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pmctl/internal/registry"
	"pmctl/internal/remote"
)

// Version is reported by getVersion. Overridden at link time.
var Version = "0.3.0"

const defaultKillTimeout = 1600 * time.Millisecond

// child is a process spawned by this daemon instance.
type child struct {
	pid      int
	done     chan struct{}
	stopping bool
}

// service answers remote commands from the registry. Processes it spawned
// are reaped by a waiter goroutine; processes adopted from a previous
// daemon run are tracked by the liveness loop only.
type service struct {
	reg         *registry.Registry
	logger      *log.Logger
	version     string
	killTimeout time.Duration

	// ops serializes commands that change process state.
	ops sync.Mutex

	mu       sync.Mutex
	children map[registry.ProcID]*child
}

func newService(reg *registry.Registry, logger *log.Logger, killTimeout time.Duration) *service {
	if killTimeout <= 0 {
		killTimeout = defaultKillTimeout
	}
	return &service{
		reg:         reg,
		logger:      logger,
		version:     Version,
		killTimeout: killTimeout,
		children:    make(map[registry.ProcID]*child),
	}
}

type idArgs struct {
	ID  *int              `json:"id"`
	Env map[string]string `json:"env"`
}

type notifyArgs struct {
	ID       any    `json:"id"`
	Action   string `json:"action_name"`
	Manually bool   `json:"manually"`
}

// Execute implements remote.Handler.
func (s *service) Execute(ctx context.Context, command string, raw json.RawMessage) (any, error) {
	switch command {
	case remote.CmdPing:
		return "pong", nil
	case remote.CmdGetVersion:
		return s.version, nil
	case remote.CmdGetMonitorData:
		return s.monitorData(), nil
	case remote.CmdPrepare:
		var cfg map[string]any
		if err := decodeArgs(raw, &cfg); err != nil {
			return nil, err
		}
		return s.prepare(cfg)
	case remote.CmdStartProcessID, remote.CmdStopProcessID, remote.CmdRestartProcessID, remote.CmdDeleteProcessID:
		var args idArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if args.ID == nil {
			return nil, status.Error(codes.InvalidArgument, "id is required")
		}
		return s.processCommand(command, registry.ProcID(*args.ID), args.Env)
	case remote.CmdNotifyByProcessID:
		var args notifyArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		s.logger.Info("process action", "id", args.ID, "action", args.Action, "manually", args.Manually)
		return nil, nil
	default:
		return nil, status.Errorf(codes.Unimplemented, "unknown command %q", command)
	}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return status.Error(codes.InvalidArgument, "arguments are required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode arguments: %v", err)
	}
	return nil
}

func (s *service) monitorData() []processInfo {
	procs := s.reg.List(registry.ListFilter{})
	out := make([]processInfo, 0, len(procs))
	for _, p := range procs {
		var u usage
		if p.Online() {
			u = sampleUsage(p.PID)
		}
		out = append(out, describe(p, u))
	}
	return out
}

// prepare registers one record per instance and launches each.
func (s *service) prepare(cfg map[string]any) ([]processInfo, error) {
	name := configString(cfg, "name")
	if configString(cfg, "script") == "" {
		return nil, status.Error(codes.InvalidArgument, "script is required")
	}
	instances := configInt(cfg, "instances")
	if instances < 1 {
		instances = 1
	}

	s.ops.Lock()
	defer s.ops.Unlock()

	out := make([]processInfo, 0, instances)
	for i := 0; i < instances; i++ {
		p, err := s.reg.Add(name, cfg, nil)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		p, err = s.spawn(p)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "launch %s: %v", name, err)
		}
		out = append(out, describe(p, usage{}))
	}
	return out, nil
}

func (s *service) processCommand(command string, id registry.ProcID, env map[string]string) (any, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	p, ok := s.reg.Get(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "process %d not found", id)
	}

	var err error
	switch command {
	case remote.CmdStartProcessID:
		if p.Online() {
			return describe(p, usage{}), nil
		}
		p, err = s.spawn(withEnv(p, env))
	case remote.CmdStopProcessID:
		p, err = s.stop(p)
	case remote.CmdRestartProcessID:
		if p, err = s.stop(p); err == nil {
			p, err = s.reg.Update(id, func(p *registry.Proc) { p.RestartTime++ })
		}
		if err == nil {
			p, err = s.spawn(withEnv(p, env))
		}
	case remote.CmdDeleteProcessID:
		if p, err = s.stop(p); err == nil {
			p, _ = s.reg.Remove(id)
		}
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%s %d: %v", command, id, err)
	}
	return describe(p, usage{}), nil
}

func withEnv(p registry.Proc, env map[string]string) registry.Proc {
	if len(env) == 0 {
		return p
	}
	if p.Env == nil {
		p.Env = make(map[string]string, len(env))
	}
	maps.Copy(p.Env, env)
	return p
}

func (s *service) spawn(p registry.Proc) (registry.Proc, error) {
	cmd, files, err := buildCommand(p)
	if err == nil {
		err = cmd.Start()
		if err != nil {
			files.Close()
		}
	}
	if err != nil {
		_, _ = s.reg.Update(p.ID, func(rp *registry.Proc) {
			rp.Status = registry.StatusErrored
			rp.PID, rp.PGID = 0, 0
		})
		return p, err
	}

	pid := cmd.Process.Pid
	c := &child{pid: pid, done: make(chan struct{})}
	s.mu.Lock()
	s.children[p.ID] = c
	s.mu.Unlock()

	updated, err := s.reg.Update(p.ID, func(rp *registry.Proc) {
		rp.Env = p.Env
		rp.PID, rp.PGID = pid, pid
		rp.Status = registry.StatusOnline
		rp.LastSeen = time.Now().UTC()
	})
	s.logger.Info("process started", "id", p.ID, "name", p.Name, "pid", pid)

	go s.wait(p.ID, cmd, files, c)
	return updated, err
}

func (s *service) wait(id registry.ProcID, cmd *exec.Cmd, files io.Closer, c *child) {
	err := cmd.Wait()
	files.Close()

	s.mu.Lock()
	stopping := c.stopping
	if s.children[id] == c {
		delete(s.children, id)
	}
	s.mu.Unlock()

	next := registry.StatusStopped
	var exitErr *exec.ExitError
	if err != nil && !stopping && errors.As(err, &exitErr) {
		next = registry.StatusErrored
	}
	_, _ = s.reg.Update(id, func(p *registry.Proc) {
		if p.PID != c.pid {
			return
		}
		p.Status = next
		p.PID, p.PGID = 0, 0
	})
	s.logger.Info("process exited", "id", id, "pid", c.pid, "status", next, "err", err)
	close(c.done)
}

// stop terminates the process group with SIGTERM, escalating to SIGKILL
// after killTimeout, and records the process as stopped.
func (s *service) stop(p registry.Proc) (registry.Proc, error) {
	if !p.Online() {
		return s.reg.Update(p.ID, func(rp *registry.Proc) {
			if rp.Status != registry.StatusErrored {
				rp.Status = registry.StatusStopped
			}
		})
	}

	s.mu.Lock()
	c := s.children[p.ID]
	if c != nil {
		c.stopping = true
	}
	s.mu.Unlock()

	target := p.PID
	if p.PGID > 0 {
		target = -p.PGID
	}
	if err := killTarget(target, syscall.SIGTERM); err != nil {
		return p, err
	}
	if !s.waitExit(p.PID, c, s.killTimeout) {
		s.logger.Warn("process ignored SIGTERM, killing", "id", p.ID, "pid", p.PID)
		if err := killTarget(target, syscall.SIGKILL); err != nil {
			return p, err
		}
		s.waitExit(p.PID, c, s.killTimeout)
	}

	return s.reg.Update(p.ID, func(rp *registry.Proc) {
		rp.Status = registry.StatusStopped
		rp.PID, rp.PGID = 0, 0
	})
}

func (s *service) waitExit(pid int, c *child, timeout time.Duration) bool {
	if c != nil {
		select {
		case <-c.done:
			return true
		case <-time.After(timeout):
			return false
		}
	}
	deadline := time.Now().Add(timeout)
	for {
		if !alive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// checkLiveness refreshes processes this daemon did not spawn and bumps
// lastSeen for the ones it did.
func (s *service) checkLiveness() {
	for _, p := range s.reg.List(registry.ListFilter{OnlineOnly: true}) {
		s.mu.Lock()
		_, owned := s.children[p.ID]
		s.mu.Unlock()
		if owned {
			s.reg.SetAlive(p.ID, true)
			continue
		}
		up := alive(p.PID)
		if s.reg.SetAlive(p.ID, up) && !up {
			s.logger.Info("process gone", "id", p.ID, "pid", p.PID)
		}
	}
}

func killTarget(target int, sig syscall.Signal) error {
	if err := syscall.Kill(target, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
