package app

import (
	"context"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"pmctl/internal/appconfig"
	"pmctl/internal/remote"
)

const notifyTimeout = 5 * time.Second

var processIDCommand = regexp.MustCompile(`^([a-z]+)ProcessId$`)

// Interface maps high-level operations onto remote commands. It assumes
// the executor is already connected; App adds connection management and
// the asynchronous calling conventions on top.
type Interface struct {
	exec       remote.Executor
	normalizer appconfig.Normalizer
	events     *emitter
	logger     *log.Logger

	// hold keeps the connection referenced while a best-effort
	// notification is in flight. The returned func drops the reference.
	hold    func() func()
	environ func() map[string]string
}

// InterfaceOptions configures a standalone Interface.
type InterfaceOptions struct {
	Logger     *log.Logger
	Normalizer appconfig.Normalizer
}

// NewInterface builds a command façade over exec.
func NewInterface(exec remote.Executor, opts InterfaceOptions) *Interface {
	return newInterface(exec, opts.Normalizer, newEmitter(), opts.Logger)
}

func newInterface(exec remote.Executor, normalizer appconfig.Normalizer, events *emitter, logger *log.Logger) *Interface {
	if logger == nil {
		logger = log.Default()
	}
	return &Interface{
		exec:       exec,
		normalizer: normalizer,
		events:     events,
		logger:     logger,
		hold:       func() func() { return func() {} },
		environ:    currentEnv,
	}
}

// On registers a listener and returns a function that removes it.
func (i *Interface) On(kind EventKind, fn Listener) func() {
	return i.events.on(kind, fn)
}

// Connect opens the executor's channel.
func (i *Interface) Connect(ctx context.Context) error {
	if err := i.exec.Connect(ctx); err != nil {
		return &ConnectionError{Op: "connect", Err: err}
	}
	return nil
}

// Disconnect closes the executor's channel.
func (i *Interface) Disconnect(ctx context.Context) error {
	if err := i.exec.Disconnect(ctx); err != nil {
		return &ConnectionError{Op: "disconnect", Err: err}
	}
	return nil
}

// execute dispatches one command, announcing it first. Successful
// <verb>ProcessId commands are followed by a best-effort notification.
func (i *Interface) execute(ctx context.Context, command string, args, reply any) error {
	i.events.emit(Event{Kind: EventCommand, Command: command, Args: args})
	if err := i.exec.Execute(ctx, command, args, reply); err != nil {
		return &RemoteError{Command: command, Err: err}
	}
	if m := processIDCommand.FindStringSubmatch(command); m != nil {
		i.notify(m[1], targetID(args))
	}
	return nil
}

type notifyArgs struct {
	ID       any    `json:"id"`
	Action   string `json:"action_name"`
	Manually bool   `json:"manually"`
}

func (i *Interface) notify(action string, id any) {
	release := i.hold()
	go func() {
		defer release()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		args := notifyArgs{ID: id, Action: action, Manually: true}
		if err := i.exec.Execute(ctx, remote.CmdNotifyByProcessID, args, nil); err != nil {
			i.logger.Warn("notify failed", "action", action, "id", id, "err", err)
		}
	}()
}

func targetID(args any) any {
	if r, ok := args.(restartArgs); ok {
		return r.ID
	}
	return args
}

func currentEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
