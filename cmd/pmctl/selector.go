package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"pmctl/internal/app"
)

// selector holds the process filter flags shared by list and the bulk
// commands.
type selector struct {
	id     int
	name   string
	script string
	port   int
	path   string
	all    bool
}

func (s *selector) bind(cmd *cobra.Command, withAll bool) {
	cmd.Flags().IntVar(&s.id, "id", -1, "Match the process with this id")
	cmd.Flags().StringVar(&s.name, "name", "", "Match processes with this exact name")
	cmd.Flags().StringVar(&s.script, "script", "", "Match processes whose script file name equals this")
	cmd.Flags().IntVar(&s.port, "port", 0, "Match processes listening on this port")
	cmd.Flags().StringVar(&s.path, "path", "", "Match processes whose script path equals this")
	if withAll {
		cmd.Flags().BoolVar(&s.all, "all", false, "Act on every process")
	}
}

func (s *selector) spec() app.Spec {
	spec := app.Spec{Name: s.name, Script: s.script, Path: s.path}
	if s.id >= 0 {
		id := s.id
		spec.ID = &id
	}
	if s.port > 0 {
		port := s.port
		spec.Port = &port
	}
	return spec
}

// requireSpec refuses an empty filter unless --all was given.
func (s *selector) requireSpec() (app.Spec, error) {
	spec := s.spec()
	if spec.Empty() && !s.all {
		return spec, errors.New("no selector given: use --id, --name, --script, --port, --path or --all")
	}
	return spec, nil
}

func printProcesses(w io.Writer, procs []app.Process) {
	if len(procs) == 0 {
		fmt.Fprintln(w, "No processes")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("id", "name", "mode", "pid", "status", "restarts", "cpu", "memory")
	for _, p := range procs {
		t.Row(
			strconv.Itoa(p.ID),
			p.Name,
			p.Env.ExecMode,
			strconv.Itoa(p.PID),
			p.Env.Status,
			strconv.Itoa(p.Env.RestartTime),
			fmt.Sprintf("%.1f%%", p.Monit.CPU),
			fmt.Sprintf("%.1fmb", float64(p.Monit.Memory)/(1<<20)),
		)
	}
	fmt.Fprintln(w, t.Render())
}
