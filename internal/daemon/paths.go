package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"pmctl/internal/remote"
)

// SocketBaseName is the UNIX socket filename
const SocketBaseName = "pmctl.sock"

const (
	pidFileName      = "pmctl.pid"
	snapshotFileName = "registry.cbor"
)

// SocketPath returns the full path to the UNIX socket
// Order of precedence (first wins):
// 1) PMCTL_SOCKET (absolute path to socket)
// 2) if runtime=linux:
//   - PMCTL_RUNTIME_DIR or $XDG_RUNTIME_DIR or /run/user/<UID>
//     else (darwin, *bsd, etc):
//   - PMCTL_RUNTIME_DIR or /tmp
func SocketPath() string {
	if explicit := os.Getenv("PMCTL_SOCKET"); explicit != "" {
		return explicit
	}

	uid := currentUID()

	if rd := os.Getenv("PMCTL_RUNTIME_DIR"); rd != "" {
		return filepath.Join(rd, SocketBaseName)
	}

	if runtime.GOOS == "linux" {
		if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
			return filepath.Join(v, SocketBaseName)
		}
		return filepath.Join("/run/user", uid, SocketBaseName)
	}

	// keep it short to avoid the sun_path length limit
	return filepath.Join("/tmp", "pmctl-"+uid+".sock")
}

// Paths groups the files the daemon owns. Everything lives next to the
// socket.
type Paths struct {
	Socket   string
	PID      string
	Snapshot string
}

// PathsFor derives the pid file and snapshot locations from socket. An
// empty socket means SocketPath().
func PathsFor(socket string) Paths {
	if socket == "" {
		socket = SocketPath()
	}
	dir := filepath.Dir(socket)
	return Paths{
		Socket:   socket,
		PID:      filepath.Join(dir, pidFileName),
		Snapshot: filepath.Join(dir, snapshotFileName),
	}
}

// EnsureRuntimeDir creates the socket directory if it doesn't exist
func (p Paths) EnsureRuntimeDir() error {
	return os.MkdirAll(filepath.Dir(p.Socket), 0o700)
}

// WritePID stores the provided pid into the pid file
func (p Paths) WritePID(pid int) error {
	if err := p.EnsureRuntimeDir(); err != nil {
		return err
	}
	return os.WriteFile(p.PID, []byte(fmt.Sprintf("%d\n", pid)), 0o600)
}

// RemovePID removes the pid file if it exists
func (p Paths) RemovePID() error {
	if err := os.Remove(p.PID); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RunningPID returns the pid stored in the pid file if any
func (p Paths) RunningPID() (int, error) {
	data, err := os.ReadFile(p.PID)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// IsRunning pings the daemon and returns true if it responds.
func (p Paths) IsRunning() bool {
	if _, err := os.Stat(p.Socket); err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	client := remote.NewClient(p.Socket)
	if err := client.Connect(ctx); err != nil {
		return false
	}
	defer client.Disconnect(ctx)

	var pong string
	if err := client.Execute(ctx, remote.CmdPing, struct{}{}, &pong); err != nil {
		return false
	}
	return pong == "pong"
}

func currentUID() string {
	u, err := user.Current()
	if err == nil && u != nil && u.Uid != "" {
		return u.Uid
	}
	return "0"
}
