package main

import "pmctl/internal/app"

func init() {
	rootCmd.AddCommand(bulkCommand("start", "Start stopped processes", "Started", (*app.App).Start))
}
