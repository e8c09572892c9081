package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a gRPC Executor bound to the daemon's UNIX socket. The
// connection is opened by Connect and dropped by Disconnect.
type Client struct {
	socketPath  string
	target      string
	dialer      func(context.Context, string) (net.Conn, error)
	dialTimeout time.Duration
	callTimeout time.Duration

	mu   sync.Mutex
	conn *grpc.ClientConn
}

// Option configures a Client.
type Option func(*Client)

// WithDialTimeout bounds how long Connect waits for the channel to become
// ready. Zero waits for as long as the caller's context allows.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// WithCallTimeout bounds every Execute call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.callTimeout = d
	}
}

// WithDialer replaces the UNIX dialer, e.g. with an in-memory listener.
func WithDialer(target string, dial func(context.Context, string) (net.Conn, error)) Option {
	return func(c *Client) {
		c.target = target
		c.dialer = dial
	}
}

// NewClient builds a client for the daemon listening on socketPath.
func NewClient(socketPath string, opts ...Option) *Client {
	c := &Client{
		socketPath: socketPath,
		target:     socketTarget(socketPath),
	}
	c.dialer = c.unixDialer
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the channel and waits until it is ready.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	conn, err := grpc.NewClient(
		c.target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(c.dialer),
	)
	if err != nil {
		return err
	}
	if c.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.dialTimeout)
		defer cancel()
	}
	conn.Connect()
	if err := waitForReady(ctx, conn); err != nil {
		_ = conn.Close()
		return err
	}
	c.conn = conn
	return nil
}

// Disconnect closes the channel. Closing an already closed client is a no-op.
func (c *Client) Disconnect(context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Execute implements Executor.
func (c *Client) Execute(ctx context.Context, command string, args, reply any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return invoke(ctx, conn, c.callTimeout, command, args, reply)
}

func invoke(ctx context.Context, conn grpc.ClientConnInterface, timeout time.Duration, command string, args, reply any) error {
	req, err := newRequest(command, args)
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out := new(structpb.Value)
	if err := conn.Invoke(ctx, executeMethod, req, out); err != nil {
		return err
	}
	if err := fromValue(out, reply); err != nil {
		return fmt.Errorf("decode %s reply: %w", command, err)
	}
	return nil
}

func socketTarget(path string) string {
	if trimmed, ok := strings.CutPrefix(path, "/"); ok {
		return "unix:///" + trimmed
	}
	return "unix://" + path
}

func (c *Client) unixDialer(ctx context.Context, addr string) (net.Conn, error) {
	if trimmed, ok := strings.CutPrefix(addr, "unix://"); ok {
		addr = trimmed
	}
	if addr == "" {
		addr = c.socketPath
	}
	var d net.Dialer
	return d.DialContext(ctx, "unix", addr)
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		switch state := conn.GetState(); state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection is shut down")
		default:
			if state == connectivity.Idle {
				conn.Connect()
			}
			if !conn.WaitForStateChange(ctx, state) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("grpc connection stuck in state %s", state.String())
			}
		}
	}
}
