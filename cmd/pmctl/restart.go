package main

import "pmctl/internal/app"

func init() {
	rootCmd.AddCommand(bulkCommand("restart", "Restart processes with the current environment", "Restarted", (*app.App).Restart))
}
