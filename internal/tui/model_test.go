package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"pmctl/internal/app"
)

type stubController struct {
	procs   []app.Process
	applied []string
	failID  int
}

func (s *stubController) Status() (DaemonStatus, error) {
	return DaemonStatus{Running: true, PID: 10}, nil
}

func (s *stubController) StartDaemon() error { return nil }

func (s *stubController) List(context.Context, app.Spec) ([]app.Process, error) {
	return s.procs, nil
}

func (s *stubController) Apply(_ context.Context, action Action, spec app.Spec) ([]app.Process, error) {
	id := *spec.ID
	s.applied = append(s.applied, string(action))
	if id == s.failID {
		return nil, errors.New("refused")
	}
	return []app.Process{{ID: id}}, nil
}

func loaded(t *testing.T, ctrl *stubController) *Model {
	t.Helper()
	m := New(ctrl)
	m.Update(daemonStatusMsg{status: DaemonStatus{Running: true, PID: 10}})
	m.Update(processesLoadedMsg{processes: ctrl.procs})
	return m
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestStopAppliesToHighlightedProcess(t *testing.T) {
	ctrl := &stubController{procs: []app.Process{{ID: 3, Name: "api"}, {ID: 5, Name: "web"}}, failID: -1}
	m := loaded(t, ctrl)

	_, cmd := m.Update(key("x"))
	require.NotNil(t, cmd)
	msg := cmd().(actionDoneMsg)
	require.Equal(t, ActionStop, msg.action)
	require.Equal(t, 1, msg.count)
	require.NoError(t, msg.err)
	require.Equal(t, []string{"stop"}, ctrl.applied)
}

func TestSelectionDrivesBulkActions(t *testing.T) {
	ctrl := &stubController{procs: []app.Process{{ID: 3}, {ID: 5}}, failID: 3}
	m := loaded(t, ctrl)

	m.Update(key(" "))
	require.True(t, m.selected[3])

	_, cmd := m.Update(key("d"))
	msg := cmd().(actionDoneMsg)
	require.Equal(t, 0, msg.count)
	require.Error(t, msg.err)

	m.Update(key("c"))
	require.Empty(t, m.selected)
}

func TestViewShowsProcessDetails(t *testing.T) {
	ctrl := &stubController{procs: []app.Process{{
		ID:   1,
		Name: "api",
		PID:  4242,
		Env:  app.ProcessEnv{Status: "online", ExecPath: "/srv/api.js"},
	}}}
	m := loaded(t, ctrl)

	view := m.View()
	require.Contains(t, view, "Daemon running (pid 10).")
	require.Contains(t, view, "script=/srv/api.js")
	require.Contains(t, view, "status=online")
}

func TestHumanBytes(t *testing.T) {
	require.Equal(t, "512b", humanBytes(512))
	require.Equal(t, "1.5kb", humanBytes(1536))
	require.Equal(t, "2.0mb", humanBytes(2<<20))
}
