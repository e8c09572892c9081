package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pmctl/internal/remote"
)

func init() {
	rootCmd.AddCommand(cmdPing)
}

var pingTimeoutSeconds int

func init() {
	cmdPing.Flags().IntVarP(&pingTimeoutSeconds, "timeout", "t", 2, "Timeout in seconds for daemon ping")
}

// `pmctl ping` is a daemon health check: it prints "pong" or fails.
var cmdPing = &cobra.Command{
	Use:   "ping",
	Short: "Check daemon availability (expects 'pong')",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := settings()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(pingTimeoutSeconds)*time.Second)
		defer cancel()

		exec := executorFactory(cfg)
		if err := exec.Connect(ctx); err != nil {
			return fmt.Errorf("connect to daemon: %w", err)
		}
		defer exec.Disconnect(context.Background())

		var msg string
		if err := exec.Execute(ctx, remote.CmdPing, struct{}{}, &msg); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}
