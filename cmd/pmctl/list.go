package main

import (
	"context"

	"github.com/spf13/cobra"

	"pmctl/internal/app"
)

var listSelector selector

func init() {
	rootCmd.AddCommand(cmdList)
	listSelector.bind(cmdList, false)
}

var cmdList = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List processes managed by the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			procs, err := a.List(ctx, listSelector.spec()).Wait(ctx)
			if err != nil {
				return err
			}
			printProcesses(cmd.OutOrStdout(), procs)
			return nil
		})
	},
}
