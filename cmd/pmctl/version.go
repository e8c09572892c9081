package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pmctl/internal/app"
	"pmctl/internal/daemon"
)

func init() {
	rootCmd.AddCommand(cmdVersion)
}

var cmdVersion = &cobra.Command{
	Use:   "version",
	Short: "Print client and daemon versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "client %s\n", daemon.Version)
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			v, err := a.Version(ctx).Wait(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "daemon %s\n", v)
			return nil
		})
	},
}
