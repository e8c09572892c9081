package app

import (
	"context"

	"pmctl/internal/remote"
)

// restartArgs is the argument shape of the per-process commands. Env
// carries the caller's environment so restarted processes pick it up.
type restartArgs struct {
	ID  int               `json:"id"`
	Env map[string]string `json:"env,omitempty"`
}

type bulkOp struct {
	name    string
	command string
	withEnv bool
}

var (
	opStart   = bulkOp{name: "start", command: remote.CmdStartProcessID}
	opStop    = bulkOp{name: "stop", command: remote.CmdStopProcessID}
	opRestart = bulkOp{name: "restart", command: remote.CmdRestartProcessID, withEnv: true}
	opDelete  = bulkOp{name: "delete", command: remote.CmdDeleteProcessID}
)

// forEachProcess resolves spec and runs op on every match, one at a time in
// list order. A failing process does not stop the iteration: it is left out
// of the returned slice and reported in a *BulkError.
func (i *Interface) forEachProcess(ctx context.Context, op bulkOp, spec Spec) ([]Process, error) {
	procs, err := i.List(ctx, spec)
	if err != nil {
		return nil, err
	}

	var env map[string]string
	if op.withEnv {
		env = i.environ()
	}

	done := make([]Process, 0, len(procs))
	var failures []ProcessFailure
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			failures = append(failures, ProcessFailure{Process: p, Err: err})
			continue
		}
		args := restartArgs{ID: p.ID, Env: env}
		if err := i.execute(ctx, op.command, args, nil); err != nil {
			i.logger.Debug("process command failed", "op", op.name, "id", p.ID, "err", err)
			failures = append(failures, ProcessFailure{Process: p, Err: err})
			continue
		}
		done = append(done, p)
	}
	if len(failures) > 0 {
		return done, &BulkError{Op: op.name, Failures: failures}
	}
	return done, nil
}

// Start starts every process matching spec.
func (i *Interface) Start(ctx context.Context, spec Spec) ([]Process, error) {
	return i.forEachProcess(ctx, opStart, spec)
}

// Stop stops every process matching spec.
func (i *Interface) Stop(ctx context.Context, spec Spec) ([]Process, error) {
	return i.forEachProcess(ctx, opStop, spec)
}

// Restart restarts every process matching spec with the current environment.
func (i *Interface) Restart(ctx context.Context, spec Spec) ([]Process, error) {
	return i.forEachProcess(ctx, opRestart, spec)
}

// Delete removes every process matching spec from the daemon.
func (i *Interface) Delete(ctx context.Context, spec Spec) ([]Process, error) {
	return i.forEachProcess(ctx, opDelete, spec)
}

func (a *App) bulk(ctx context.Context, op bulkOp, spec Spec, cb Callback[[]Process]) *Future[[]Process] {
	return run(a, ctx, func(ctx context.Context) ([]Process, error) {
		return a.iface.forEachProcess(ctx, op, spec)
	}, cb)
}

// Start starts the matching processes. The future yields the processes
// that started; failures come as a *BulkError alongside them.
func (a *App) Start(ctx context.Context, spec Spec) *Future[[]Process] {
	return a.bulk(ctx, opStart, spec, nil)
}

// StartWithCallback is Start with a completion callback.
func (a *App) StartWithCallback(ctx context.Context, spec Spec, cb Callback[[]Process]) *Future[[]Process] {
	return a.bulk(ctx, opStart, spec, cb)
}

// Stop stops the matching processes.
func (a *App) Stop(ctx context.Context, spec Spec) *Future[[]Process] {
	return a.bulk(ctx, opStop, spec, nil)
}

// StopWithCallback is Stop with a completion callback.
func (a *App) StopWithCallback(ctx context.Context, spec Spec, cb Callback[[]Process]) *Future[[]Process] {
	return a.bulk(ctx, opStop, spec, cb)
}

// Restart restarts the matching processes.
func (a *App) Restart(ctx context.Context, spec Spec) *Future[[]Process] {
	return a.bulk(ctx, opRestart, spec, nil)
}

// RestartWithCallback is Restart with a completion callback.
func (a *App) RestartWithCallback(ctx context.Context, spec Spec, cb Callback[[]Process]) *Future[[]Process] {
	return a.bulk(ctx, opRestart, spec, cb)
}

// Delete deletes the matching processes.
func (a *App) Delete(ctx context.Context, spec Spec) *Future[[]Process] {
	return a.bulk(ctx, opDelete, spec, nil)
}

// DeleteWithCallback is Delete with a completion callback.
func (a *App) DeleteWithCallback(ctx context.Context, spec Spec, cb Callback[[]Process]) *Future[[]Process] {
	return a.bulk(ctx, opDelete, spec, cb)
}
