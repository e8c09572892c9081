package app

import (
	"context"

	"pmctl/internal/remote"
)

// Version asks the daemon for its version string.
func (i *Interface) Version(ctx context.Context) (string, error) {
	var v string
	if err := i.execute(ctx, remote.CmdGetVersion, struct{}{}, &v); err != nil {
		return "", err
	}
	return v, nil
}

// Version reports the daemon's version.
func (a *App) Version(ctx context.Context) *Future[string] {
	return a.VersionWithCallback(ctx, nil)
}

// VersionWithCallback is Version with a completion callback.
func (a *App) VersionWithCallback(ctx context.Context, cb Callback[string]) *Future[string] {
	return run(a, ctx, a.iface.Version, cb)
}
