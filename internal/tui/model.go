package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pmctl/internal/app"
)

const opTimeout = 10 * time.Second

// DaemonStatus is what the header shows about the daemon.
type DaemonStatus struct {
	Running bool
	PID     int
}

// Controller defines the subset of behaviour the TUI needs.
type Controller interface {
	Status() (DaemonStatus, error)
	StartDaemon() error
	List(context.Context, app.Spec) ([]app.Process, error)
	Apply(context.Context, Action, app.Spec) ([]app.Process, error)
}

// Action is a bulk operation triggered from the keyboard.
type Action string

const (
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionDelete  Action = "delete"
)

// Model represents the Bubble Tea state.
type Model struct {
	controller Controller

	list      list.Model
	processes []app.Process
	selected  map[int]bool

	daemonStatus DaemonStatus
	statusMsg    string

	err     error
	loading bool

	width  int
	height int

	filter app.Spec

	lastUpdated time.Time
}

// New constructs a TUI model with default styles.
func New(ctrl Controller) *Model {
	delegate := list.NewDefaultDelegate()
	lst := list.New([]list.Item{}, delegate, 0, 0)
	lst.Title = "Processes"
	lst.SetShowHelp(false)
	lst.SetFilteringEnabled(false)
	lst.DisableQuitKeybindings()

	return &Model{
		controller: ctrl,
		list:       lst,
		statusMsg:  "Checking daemon status…",
		loading:    true,
		selected:   make(map[int]bool),
	}
}

// Run spins up the Bubble Tea program.
func Run(ctrl Controller) error {
	m := New(ctrl)
	prog := tea.NewProgram(m, tea.WithAltScreen())
	_, err := prog.Run()
	return err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(checkDaemonStatusCmd(m.controller), loadProcessesCmd(m.controller, m.filter))
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.height > 4 {
			m.list.SetSize(msg.Width, msg.Height-4)
		}

	case daemonStatusMsg:
		m.daemonStatus = msg.status
		if msg.status.Running {
			if msg.status.PID > 0 {
				m.statusMsg = fmt.Sprintf("Daemon running (pid %d).", msg.status.PID)
			} else {
				m.statusMsg = "Daemon running."
			}
		} else {
			m.statusMsg = "Daemon is not running. Press s to start it."
			m.processes = nil
			m.list.SetItems(nil)
		}

	case processesLoadedMsg:
		m.loading = false
		m.err = nil
		m.processes = msg.processes
		newSelected := make(map[int]bool)
		items := make([]list.Item, 0, len(msg.processes))
		for _, proc := range msg.processes {
			selected := m.selected[proc.ID]
			if selected {
				newSelected[proc.ID] = true
			}
			items = append(items, processItem{Process: proc, Selected: selected})
		}
		m.selected = newSelected
		m.list.SetItems(items)
		m.lastUpdated = time.Now()

	case actionDoneMsg:
		m.statusMsg = fmt.Sprintf("%s: %d process(es) done.", msg.action, msg.count)
		if msg.err != nil {
			m.err = msg.err
		}
		m.loading = true
		return m, loadProcessesCmd(m.controller, m.filter)

	case daemonStartedMsg:
		m.statusMsg = "Daemon started."
		return m, tea.Batch(checkDaemonStatusCmd(m.controller), loadProcessesCmd(m.controller, m.filter))

	case errMsg:
		m.loading = false
		m.err = msg.err

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, loadProcessesCmd(m.controller, m.filter)
		case "s":
			if !m.daemonStatus.Running {
				m.statusMsg = "Starting daemon…"
				return m, startDaemonCmd(m.controller)
			}
		case "x":
			return m, m.apply(ActionStop)
		case "R":
			return m, m.apply(ActionRestart)
		case "d":
			return m, m.apply(ActionDelete)
		case " ":
			m.toggleCurrentSelection()
		case "c":
			if len(m.selected) > 0 {
				m.clearSelection()
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// apply runs action on the selected processes, or on the highlighted one
// when nothing is selected.
func (m *Model) apply(action Action) tea.Cmd {
	ids := m.targetIDs()
	if len(ids) == 0 {
		return nil
	}
	m.statusMsg = fmt.Sprintf("Running %s on %d process(es)…", action, len(ids))
	return applyCmd(m.controller, action, ids)
}

func (m *Model) targetIDs() []int {
	ids := make([]int, 0, len(m.selected))
	for id := range m.selected {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		if current := m.currentProcess(); current != nil {
			ids = append(ids, current.ID)
		}
	}
	sort.Ints(ids)
	return ids
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	statusStyle := lipgloss.NewStyle().Bold(true)
	if !m.daemonStatus.Running {
		statusStyle = statusStyle.Foreground(lipgloss.Color("203"))
	} else {
		statusStyle = statusStyle.Foreground(lipgloss.Color("42"))
	}
	b.WriteString(statusStyle.Render(m.statusMsg))
	b.WriteByte('\n')

	if m.loading {
		b.WriteString("Loading processes…\n")
	} else if m.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
		b.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteByte('\n')
	}

	if len(m.list.Items()) == 0 && !m.loading && m.err == nil && m.daemonStatus.Running {
		b.WriteString("No processes found.\n")
	} else {
		b.WriteString(m.list.View())
		b.WriteByte('\n')
	}

	if current := m.currentProcess(); current != nil {
		detail := fmt.Sprintf(
			"id=%d pid=%d status=%s restarts=%d\nname=%s\nscript=%s\ncwd=%s\ncpu=%.1f%% mem=%s",
			current.ID,
			current.PID,
			current.Env.Status,
			current.Env.RestartTime,
			valueOrDash(current.Name),
			valueOrDash(current.Env.ExecPath),
			valueOrDash(current.Env.Cwd),
			current.Monit.CPU,
			humanBytes(current.Monit.Memory),
		)
		detailStyle := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).MarginBottom(1)
		b.WriteString(detailStyle.Render(detail))
		b.WriteByte('\n')
	}

	help := "q quit • r reload • s start daemon • x stop • R restart • d delete • space select • c clear"
	if count := len(m.selected); count > 0 {
		help += fmt.Sprintf(" • selected=%d", count)
	}
	if !m.lastUpdated.IsZero() {
		help += fmt.Sprintf(" • last update %s", m.lastUpdated.Format(time.Kitchen))
	}
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

// processItem adapts app.Process to the bubbles list item interface.
type processItem struct {
	Process  app.Process
	Selected bool
}

func (p processItem) Title() string {
	mark := " "
	if p.Selected {
		mark = "✓"
	}
	return fmt.Sprintf("[%s] [id=%d pid=%d] %s (%s)", mark, p.Process.ID, p.Process.PID, valueOrDash(p.Process.Name), valueOrDash(p.Process.Env.Status))
}

func (p processItem) Description() string {
	return fmt.Sprintf("script=%s | mode=%s restarts=%d", p.Process.Env.ExecPath, valueOrDash(p.Process.Env.ExecMode), p.Process.Env.RestartTime)
}

func (p processItem) FilterValue() string {
	return fmt.Sprintf("%d %d %s %s", p.Process.ID, p.Process.PID, p.Process.Name, p.Process.Env.ExecPath)
}

func (m *Model) toggleCurrentSelection() {
	if len(m.processes) == 0 {
		return
	}
	idx := m.list.Index()
	if idx < 0 || idx >= len(m.processes) {
		return
	}
	item, ok := m.list.Items()[idx].(processItem)
	if !ok {
		return
	}
	if item.Selected {
		delete(m.selected, item.Process.ID)
	} else {
		m.selected[item.Process.ID] = true
	}
	item.Selected = !item.Selected
	m.list.SetItem(idx, item)
}

func (m *Model) clearSelection() {
	m.selected = make(map[int]bool)
	items := m.list.Items()
	for i, it := range items {
		if pi, ok := it.(processItem); ok && pi.Selected {
			pi.Selected = false
			m.list.SetItem(i, pi)
		}
	}
}

func (m *Model) currentProcess() *app.Process {
	if len(m.processes) == 0 {
		return nil
	}
	idx := m.list.Index()
	if idx < 0 || idx >= len(m.processes) {
		return nil
	}
	return &m.processes[idx]
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%db", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cb", float64(n)/float64(div), "kmgtpe"[exp])
}

type daemonStatusMsg struct {
	status DaemonStatus
}

type processesLoadedMsg struct {
	processes []app.Process
}

type actionDoneMsg struct {
	action Action
	count  int
	err    error
}

type daemonStartedMsg struct{}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

func checkDaemonStatusCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		status, err := ctrl.Status()
		if err != nil {
			return errMsg{err}
		}
		return daemonStatusMsg{status: status}
	}
}

func loadProcessesCmd(ctrl Controller, filter app.Spec) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		procs, err := ctrl.List(ctx, filter)
		if err != nil {
			return errMsg{err}
		}
		return processesLoadedMsg{processes: procs}
	}
}

// applyCmd issues one call per id, in order, and keeps going past
// failures; the last error is reported.
func applyCmd(ctrl Controller, action Action, ids []int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		done := actionDoneMsg{action: action}
		for _, id := range ids {
			procs, err := ctrl.Apply(ctx, action, app.IDSpec(id))
			done.count += len(procs)
			if err != nil {
				done.err = err
			}
		}
		return done
	}
}

func startDaemonCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.StartDaemon(); err != nil {
			return errMsg{err}
		}
		// Give the daemon a moment to bind the socket.
		time.Sleep(300 * time.Millisecond)
		return daemonStartedMsg{}
	}
}
