package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"vawter.tech/stopper"

	"pmctl/internal/config"
	"pmctl/internal/registry"
	"pmctl/internal/remote"
)

// Options configures a daemon instance.
type Options struct {
	Paths  Paths
	Config config.Config
	Logger *log.Logger
}

// Server wraps the UNIX listener, the gRPC server and the background loops.
type Server struct {
	ln     net.Listener
	grpc   *grpc.Server
	paths  Paths
	svc    *service
	sctx   *stopper.Context
	logger *log.Logger
}

// StartDaemon binds the UNIX socket, writes the pid file and starts serving
// remote commands backed by the persisted registry.
func StartDaemon(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	paths := opts.Paths
	if paths.Socket == "" {
		paths = PathsFor(opts.Config.Socket)
	}
	if err := paths.EnsureRuntimeDir(); err != nil {
		return nil, err
	}

	// If stale socket file exists but daemon is not running, remove it
	if _, err := os.Stat(paths.Socket); err == nil && !paths.IsRunning() {
		if err := os.Remove(paths.Socket); err != nil {
			return nil, err
		}
	}

	reg, err := registry.New(paths.Snapshot, opts.Config.LastSeenInterval, logger.WithPrefix("registry"))
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	ln, err := net.Listen("unix", paths.Socket)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(paths.Socket, 0o600); err != nil {
		ln.Close()
		return nil, err
	}

	s := newServer(ln, reg, opts.Config, logger)
	s.paths = paths
	if err := paths.WritePID(os.Getpid()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// newServer starts serving on ln. It does not touch the filesystem.
func newServer(ln net.Listener, reg *registry.Registry, cfg config.Config, logger *log.Logger) *Server {
	svc := newService(reg, logger, cfg.KillTimeout)
	gs := grpc.NewServer()
	remote.Register(gs, svc)

	s := &Server{
		ln:     ln,
		grpc:   gs,
		svc:    svc,
		sctx:   stopper.WithContext(context.Background()),
		logger: logger,
	}

	s.sctx.Go(func(*stopper.Context) error {
		if err := gs.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	interval := cfg.LivenessInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	s.sctx.Go(func(sctx *stopper.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		svc.checkLiveness()
		for {
			select {
			case <-sctx.Stopping():
				return nil
			case <-ticker.C:
				svc.checkLiveness()
			}
		}
	})
	return s
}

// Close stops the loops and the server, then unlinks the socket and pid
// file. Managed processes keep running and are adopted by the next daemon.
func (s *Server) Close() error {
	s.grpc.GracefulStop()
	s.sctx.Stop(time.Second)
	err := s.sctx.Wait()

	if s.paths.Socket != "" {
		if rmErr := os.Remove(s.paths.Socket); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
		err = errors.Join(err, s.paths.RemovePID())
	}
	return err
}

// StopRunningDaemon sends a termination signal to the currently running daemon if any.
func StopRunningDaemon(paths Paths, force bool) error {
	pid, err := paths.RunningPID()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if paths.IsRunning() {
				return fmt.Errorf("daemon is running but PID file %q is missing; stop it manually", paths.PID)
			}
			return nil
		}
		return fmt.Errorf("unable to read daemon PID: %w", err)
	}
	if pid == os.Getpid() {
		return errors.New("refusing to stop current process")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := sendSignal(paths, proc, syscall.SIGTERM); err != nil {
		return err
	}
	if waitForShutdown(paths, 3*time.Second) {
		return nil
	}
	if !force {
		return fmt.Errorf("daemon process %d did not exit after SIGTERM", pid)
	}
	if err := sendSignal(paths, proc, syscall.SIGKILL); err != nil {
		return err
	}
	if waitForShutdown(paths, 2*time.Second) {
		return nil
	}
	return fmt.Errorf("daemon process %d did not exit after SIGKILL", pid)
}

func sendSignal(paths Paths, proc *os.Process, sig syscall.Signal) error {
	if err := proc.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = paths.RemovePID()
			return nil
		}
		return err
	}
	return nil
}

func waitForShutdown(paths Paths, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !paths.IsRunning() {
			_ = paths.RemovePID()
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}
