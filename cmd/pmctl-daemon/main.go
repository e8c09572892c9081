package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"pmctl/internal/config"
	"pmctl/internal/daemon"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON or YAML config file")
	force := flag.Bool("force", false, "Stop an existing daemon before starting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           cfg.LogLevel,
		Prefix:          "pmctl-daemon",
		ReportTimestamp: true,
	})
	paths := daemon.PathsFor(cfg.Socket)

	if paths.IsRunning() {
		if !*force {
			pid, err := paths.RunningPID()
			if err != nil {
				logger.Fatal("daemon appears running but pid check failed", "err", err)
			}
			logger.Info("daemon is already running, use --force to restart", "pid", pid)
			return
		}
		logger.Info("stopping existing daemon")
		if err := daemon.StopRunningDaemon(paths, true); err != nil {
			logger.Fatal("failed to stop running daemon", "err", err)
		}
	}

	srv, err := daemon.StartDaemon(daemon.Options{Paths: paths, Config: cfg, Logger: logger})
	if err != nil {
		logger.Fatal("failed to start daemon", "err", err)
	}
	logger.Info("daemon started", "pid", os.Getpid(), "socket", paths.Socket)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info("stopping daemon")
	if err := srv.Close(); err != nil {
		logger.Fatal("error shutting down daemon", "err", err)
	}
	logger.Info("daemon stopped")
}
