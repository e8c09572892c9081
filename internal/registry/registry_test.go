package registry

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, path string) *Registry {
	t.Helper()
	reg, err := New(path, time.Minute, log.New(io.Discard))
	require.NoError(t, err)
	return reg
}

func TestAddAssignsSequentialIDs(t *testing.T) {
	reg := newTestRegistry(t, "")

	a, err := reg.Add("api", map[string]any{"script": "api.js"}, nil)
	require.NoError(t, err)
	b, err := reg.Add("api", map[string]any{"script": "api.js"}, nil)
	require.NoError(t, err)

	require.Equal(t, ProcID(0), a.ID)
	require.Equal(t, ProcID(1), b.ID)
	require.Equal(t, StatusLaunching, a.Status)
	require.False(t, a.CreatedAt.IsZero())
}

func TestAddRejectsBadNames(t *testing.T) {
	reg := newTestRegistry(t, "")
	for _, name := range []string{"", "  ", "42", "has space", "semi;colon"} {
		_, err := reg.Add(name, nil, nil)
		require.Error(t, err, name)
	}
	_, err := reg.Add("worker@2:beta", nil, nil)
	require.NoError(t, err)
}

func TestListFilters(t *testing.T) {
	reg := newTestRegistry(t, "")
	api, _ := reg.Add("api", nil, nil)
	_, _ = reg.Add("web", nil, nil)
	api2, _ := reg.Add("api", nil, nil)

	_, err := reg.Update(api2.ID, func(p *Proc) {
		p.Status = StatusOnline
		p.PID = 1234
	})
	require.NoError(t, err)

	all := reg.List(ListFilter{})
	require.Len(t, all, 3)
	require.Equal(t, []ProcID{0, 1, 2}, []ProcID{all[0].ID, all[1].ID, all[2].ID})

	named := reg.List(ListFilter{Names: []string{"api"}})
	require.Len(t, named, 2)

	online := reg.List(ListFilter{Names: []string{"api"}, OnlineOnly: true})
	require.Len(t, online, 1)
	require.Equal(t, api2.ID, online[0].ID)

	byID := reg.List(ListFilter{IDs: []ProcID{api.ID}})
	require.Len(t, byID, 1)
	require.Equal(t, "api", byID[0].Name)
}

func TestUpdateKeepsIdentity(t *testing.T) {
	reg := newTestRegistry(t, "")
	p, _ := reg.Add("api", nil, nil)

	got, err := reg.Update(p.ID, func(p *Proc) {
		p.ID = 99
		p.Name = "other"
		p.RestartTime++
	})
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	require.Equal(t, "api", got.Name)
	require.Equal(t, 1, got.RestartTime)

	_, err = reg.Update(42, func(*Proc) {})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReturnedCopiesAreIsolated(t *testing.T) {
	reg := newTestRegistry(t, "")
	p, _ := reg.Add("api", map[string]any{"script": "api.js"}, map[string]string{"A": "1"})

	p.Config["script"] = "mutated.js"
	p.Env["A"] = "2"

	got, ok := reg.Get(p.ID)
	require.True(t, ok)
	require.Equal(t, "api.js", got.Config["script"])
	require.Equal(t, "1", got.Env["A"])
}

func TestRemove(t *testing.T) {
	reg := newTestRegistry(t, "")
	p, _ := reg.Add("api", nil, nil)

	removed, ok := reg.Remove(p.ID)
	require.True(t, ok)
	require.Equal(t, "api", removed.Name)
	_, ok = reg.Remove(p.ID)
	require.False(t, ok)
	require.Empty(t, reg.List(ListFilter{Names: []string{"api"}}))
}

func TestSetAliveMarksExitedProcessStopped(t *testing.T) {
	reg := newTestRegistry(t, "")
	p, _ := reg.Add("api", nil, nil)
	_, _ = reg.Update(p.ID, func(p *Proc) {
		p.Status = StatusOnline
		p.PID = 4321
		p.PGID = 4321
	})

	require.True(t, reg.SetAlive(p.ID, true))
	require.False(t, reg.SetAlive(p.ID, true), "lastSeen bumps are rate limited")

	require.True(t, reg.SetAlive(p.ID, false))
	got, _ := reg.Get(p.ID)
	require.Equal(t, StatusStopped, got.Status)
	require.Zero(t, got.PID)
	require.False(t, reg.SetAlive(99, false))
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "registry.cbor")
	reg := newTestRegistry(t, path)

	cfg := map[string]any{
		"script":    "api.js",
		"node_args": []string{"--inspect"},
		"env":       map[string]any{"PORT": "3000"},
	}
	p, err := reg.Add("api", cfg, map[string]string{"NODE_ENV": "production"})
	require.NoError(t, err)
	_, err = reg.Update(p.ID, func(p *Proc) { p.Status = StatusStopped })
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded := newTestRegistry(t, path)
	got, ok := loaded.Get(p.ID)
	require.True(t, ok)
	require.Equal(t, "api", got.Name)
	require.Equal(t, StatusStopped, got.Status)
	require.Equal(t, "production", got.Env["NODE_ENV"])
	require.Equal(t, "api.js", got.Config["script"])
	require.IsType(t, map[string]any{}, got.Config["env"])
	require.True(t, got.CreatedAt.Equal(p.CreatedAt))

	next, err := loaded.Add("web", nil, nil)
	require.NoError(t, err)
	require.Equal(t, ProcID(1), next.ID)
}

func TestResetClearsEverything(t *testing.T) {
	reg := newTestRegistry(t, "")
	_, _ = reg.Add("api", nil, nil)
	reg.Reset()
	require.Empty(t, reg.List(ListFilter{}))
	p, _ := reg.Add("api", nil, nil)
	require.Equal(t, ProcID(0), p.ID)
}
