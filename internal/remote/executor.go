// Package remote carries commands to the process-manager daemon.
//
// The daemon exposes a single gRPC method that accepts a command name plus
// an arbitrary JSON-shaped argument and answers with a JSON-shaped value.
// Executor is the client-side contract; Client implements it over a UNIX
// socket and Handler/Register implement the server side.
package remote

import (
	"context"
	"errors"
)

// Command names understood by the daemon.
const (
	CmdGetMonitorData    = "getMonitorData"
	CmdGetVersion        = "getVersion"
	CmdPrepare           = "prepare"
	CmdStartProcessID    = "startProcessId"
	CmdStopProcessID     = "stopProcessId"
	CmdRestartProcessID  = "restartProcessId"
	CmdDeleteProcessID   = "deleteProcessId"
	CmdNotifyByProcessID = "notifyByProcessId"
	CmdPing              = "ping"
)

// ErrNotConnected is returned by Execute when no connection is open.
var ErrNotConnected = errors.New("remote: not connected")

// Executor is an RPC channel to the daemon. Execute may be called
// concurrently; ordering across calls is not guaranteed.
type Executor interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	// Execute dispatches command with args and decodes the answer into
	// reply. A nil reply discards the answer.
	Execute(ctx context.Context, command string, args, reply any) error
}
