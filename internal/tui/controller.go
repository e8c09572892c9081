package tui

import (
	"context"
	"fmt"

	"pmctl/internal/app"
	"pmctl/internal/daemon"
)

// AppController drives the TUI through an app.App.
type AppController struct {
	App   *app.App
	Paths daemon.Paths
	// Spawn launches a detached daemon.
	Spawn func() error
}

// Status implements Controller.
func (c *AppController) Status() (DaemonStatus, error) {
	if !c.Paths.IsRunning() {
		return DaemonStatus{}, nil
	}
	pid, _ := c.Paths.RunningPID()
	return DaemonStatus{Running: true, PID: pid}, nil
}

// StartDaemon implements Controller.
func (c *AppController) StartDaemon() error {
	if c.Spawn == nil {
		return fmt.Errorf("starting the daemon is not supported here")
	}
	return c.Spawn()
}

// List implements Controller.
func (c *AppController) List(ctx context.Context, spec app.Spec) ([]app.Process, error) {
	return c.App.List(ctx, spec).Wait(ctx)
}

// Apply implements Controller.
func (c *AppController) Apply(ctx context.Context, action Action, spec app.Spec) ([]app.Process, error) {
	var f *app.Future[[]app.Process]
	switch action {
	case ActionStop:
		f = c.App.Stop(ctx, spec)
	case ActionRestart:
		f = c.App.Restart(ctx, spec)
	case ActionDelete:
		f = c.App.Delete(ctx, spec)
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
	return f.Wait(ctx)
}
