package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pmctl/internal/app"
)

var (
	createFile      string
	createName      string
	createInstances int
	createCwd       string
	createInterp    string
)

func init() {
	rootCmd.AddCommand(cmdCreate)
	cmdCreate.Flags().StringVarP(&createFile, "file", "f", "", "YAML file describing one app or a list of apps")
	cmdCreate.Flags().StringVar(&createName, "name", "", "App name (defaults to the script file name)")
	cmdCreate.Flags().IntVarP(&createInstances, "instances", "i", 0, "Number of instances to launch")
	cmdCreate.Flags().StringVar(&createCwd, "cwd", "", "Working directory for the app")
	cmdCreate.Flags().StringVar(&createInterp, "interpreter", "", "Interpreter to run the script with")
}

var cmdCreate = &cobra.Command{
	Use:   "create <script> [-- args...] | -f apps.yaml",
	Short: "Launch a new app",
	Long:  "Normalizes the app options and asks the daemon to launch it. Arguments after -- are passed to the script.",
	RunE: func(cmd *cobra.Command, args []string) error {
		apps, err := createRequests(args, cmd.ArgsLenAtDash())
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			var errs []error
			for _, raw := range apps {
				procs, err := a.Create(ctx, raw).Wait(ctx)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				for _, p := range procs {
					fmt.Fprintf(cmd.OutOrStdout(), "Launched [id=%d] %s pid=%d\n", p.ID, p.Name, p.PID)
				}
			}
			return errors.Join(errs...)
		})
	},
}

// createRequests turns the command line into raw app options for the
// normalizer.
func createRequests(args []string, dash int) ([]any, error) {
	if createFile != "" {
		if len(args) > 0 {
			return nil, errors.New("a script argument cannot be combined with --file")
		}
		return loadAppsFile(createFile)
	}
	if len(args) == 0 || dash == 0 {
		return nil, errors.New("a script is required")
	}

	opts := map[string]any{"script": args[0]}
	if createName != "" {
		opts["name"] = createName
	}
	if createInstances > 0 {
		opts["instances"] = createInstances
	}
	if createCwd != "" {
		opts["cwd"] = createCwd
	}
	if createInterp != "" {
		opts["interpreter"] = createInterp
		opts["executeCommand"] = true
	}
	if dash > 0 {
		opts["raw_args"] = append([]string{"--"}, args[dash:]...)
	}
	return []any{opts}, nil
}

// loadAppsFile accepts a single app mapping, a list of them, or a mapping
// with an "apps" list.
func loadAppsFile(path string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if apps, ok := v["apps"].([]any); ok {
			return apps, nil
		}
		return []any{v}, nil
	default:
		return nil, fmt.Errorf("%s: expected an app mapping or a list of apps", path)
	}
}
