package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pmctl/internal/app"
)

type bulkFunc func(a *app.App, ctx context.Context, spec app.Spec) *app.Future[[]app.Process]

// bulkCommand builds start/stop/restart/delete. Processes that succeeded
// are printed even when others failed.
func bulkCommand(use, short, verb string, run bulkFunc) *cobra.Command {
	sel := &selector{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := sel.requireSpec()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				procs, err := run(a, ctx, spec).Wait(ctx)
				for _, p := range procs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s [id=%d] %s\n", verb, p.ID, p.Name)
				}
				if err == nil && len(procs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matching processes")
				}
				return err
			})
		},
	}
	sel.bind(cmd, true)
	return cmd
}
