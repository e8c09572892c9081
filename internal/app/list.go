package app

import (
	"context"

	"pmctl/internal/remote"
)

// List fetches the daemon's monitor data and keeps the processes matching
// spec. An empty spec keeps everything.
func (i *Interface) List(ctx context.Context, spec Spec) ([]Process, error) {
	var procs []Process
	if err := i.execute(ctx, remote.CmdGetMonitorData, struct{}{}, &procs); err != nil {
		return nil, err
	}
	return filterProcesses(procs, spec), nil
}

// List returns the processes matching spec.
func (a *App) List(ctx context.Context, spec Spec) *Future[[]Process] {
	return a.ListWithCallback(ctx, spec, nil)
}

// ListWithCallback is List with a completion callback.
func (a *App) ListWithCallback(ctx context.Context, spec Spec, cb Callback[[]Process]) *Future[[]Process] {
	return run(a, ctx, func(ctx context.Context) ([]Process, error) {
		return a.iface.List(ctx, spec)
	}, cb)
}
