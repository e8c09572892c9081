package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/spf13/cobra"

	"pmctl/internal/app"
	"pmctl/internal/daemon"
	"pmctl/internal/tui"
)

func init() {
	rootCmd.AddCommand(cmdTUI)
}

var cmdTUI = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := settings()
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(_ context.Context, a *app.App) error {
			ctrl := &tui.AppController{
				App:   a,
				Paths: daemon.PathsFor(cfg.Socket),
				Spawn: spawnDaemon,
			}
			if err := tui.Run(ctrl); err != nil {
				return fmt.Errorf("tui exited with error: %w", err)
			}
			return nil
		})
	},
}

// spawnDaemon starts `pmctl daemon` detached from the terminal.
func spawnDaemon() error {
	self, err := os.Executable()
	if err != nil {
		return err
	}
	args := []string{"daemon"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	child := exec.Command(self, args...)
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := child.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	return child.Process.Release()
}
