package main

import "pmctl/internal/app"

func init() {
	rootCmd.AddCommand(bulkCommand("stop", "Stop running processes", "Stopped", (*app.App).Stop))
}
