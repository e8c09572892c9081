package app

import (
	"context"

	"pmctl/internal/appconfig"
	"pmctl/internal/remote"
)

// Prepare sends an already normalized config to the daemon and returns the
// processes it spawned.
func (i *Interface) Prepare(ctx context.Context, cfg appconfig.AppConfig) ([]Process, error) {
	var procs []Process
	if err := i.execute(ctx, remote.CmdPrepare, cfg, &procs); err != nil {
		return nil, err
	}
	return procs, nil
}

// Create normalizes raw and asks the daemon to launch it. raw is a script
// path or an options map.
func (i *Interface) Create(ctx context.Context, raw any) ([]Process, error) {
	cfg, err := i.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return i.Prepare(ctx, cfg)
}

// Create launches a new app. Invalid options fail the future right away
// without contacting the daemon.
func (a *App) Create(ctx context.Context, raw any) *Future[[]Process] {
	return a.CreateWithCallback(ctx, raw, nil)
}

// CreateWithCallback is Create with a completion callback.
func (a *App) CreateWithCallback(ctx context.Context, raw any, cb Callback[[]Process]) *Future[[]Process] {
	cfg, err := a.iface.normalizer.Normalize(raw)
	if err != nil {
		return failed(a, err, cb)
	}
	return run(a, ctx, func(ctx context.Context) ([]Process, error) {
		return a.iface.Prepare(ctx, cfg)
	}, cb)
}
