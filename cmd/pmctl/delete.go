package main

import "pmctl/internal/app"

func init() {
	cmd := bulkCommand("delete", "Stop processes and remove them from the daemon", "Deleted", (*app.App).Delete)
	cmd.Aliases = []string{"rm"}
	rootCmd.AddCommand(cmd)
}
