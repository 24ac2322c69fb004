// Command utilsim runs utility-AI scenarios: agents score every behavior
// against every target each tick and act on the best one.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/talgya/utility-sim/internal/config"
	"github.com/talgya/utility-sim/internal/engine"
	"github.com/talgya/utility-sim/internal/logging"
	"github.com/talgya/utility-sim/internal/persistence"
	"github.com/talgya/utility-sim/internal/project"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "utilsim",
		Short: "Utility-AI scenario simulator",
		Long: `utilsim loads a scenario project (YAML), then advances it tick by tick.
Every tick each agent scores all of its behaviors against every legal
target and carries out the highest-scoring one.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (YAML)")
	rootCmd.PersistentFlags().String("project", "scenarios/village.yaml", "Scenario project file")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newStepCmd(),
		newInspectCmd(),
		newValidateCmd(),
		newRunsCmd(),
		newWatchCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "utilsim version %s\n", version)
		},
	}
}

// loadConfig reads --config, applies environment overrides and installs the
// default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	slog.SetDefault(logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()))
	return cfg, nil
}

// loadScenario reads --project and builds it with the configured seed.
func loadScenario(cmd *cobra.Command, cfg *config.Config) (*engine.Scenario, error) {
	path, _ := cmd.Flags().GetString("project")
	f, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	return project.Build(f, project.Options{Seed: cfg.Simulation.Seed})
}

// openDB opens the configured database, creating its directory if needed.
func openDB(cfg *config.Config) (*persistence.DB, error) {
	if cfg.Storage.Path == "" {
		return nil, fmt.Errorf("no database configured (storage.path or UTILSIM_DB)")
	}
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", cfg.Storage.Path)
	return db, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
