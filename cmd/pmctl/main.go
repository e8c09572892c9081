package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"pmctl/internal/app"
	"pmctl/internal/config"
	"pmctl/internal/daemon"
	"pmctl/internal/remote"
)

var (
	configPath    string
	noAutoConnect bool
)

var rootCmd = &cobra.Command{
	Use:           "pmctl [command]",
	Short:         "pmctl: process manager client",
	Long:          `pmctl talks to the process manager daemon: it lists, starts, stops, restarts and deletes managed processes and launches new apps.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON or YAML config file")
	rootCmd.PersistentFlags().BoolVar(&noAutoConnect, "no-autoconnect", false, "Connect once for the whole command instead of per operation")
}

// executorFactory is swapped out in tests.
var executorFactory = func(cfg config.Config) remote.Executor {
	return remote.NewClient(
		daemon.PathsFor(cfg.Socket).Socket,
		remote.WithDialTimeout(cfg.DialTimeout),
		remote.WithCallTimeout(cfg.CallTimeout),
	)
}

func settings() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if noAutoConnect {
		cfg.NoAutoConnect = true
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:  cfg.LogLevel,
		Prefix: "pmctl",
	})
}

// withApp builds an App for one command. With auto-connect disabled the
// connection is opened up front and closed when fn returns.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := settings()
	if err != nil {
		return err
	}
	a := app.New(executorFactory(cfg), app.Options{
		NoAutoConnect: cfg.NoAutoConnect,
		Logger:        newLogger(cfg),
	})
	if cfg.NoAutoConnect {
		if _, err := a.Connect(ctx).Wait(ctx); err != nil {
			return err
		}
		defer func() {
			_, _ = a.Disconnect(context.Background()).Result()
		}()
	}
	return fn(ctx, a)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
