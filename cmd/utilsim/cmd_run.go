package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/utility-sim/internal/api"
	"github.com/talgya/utility-sim/internal/engine"
	"github.com/talgya/utility-sim/internal/persistence"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scenario in real time and serve the HTTP API",
		Long: `Run the scenario in real time. Decisions are logged to the configured
SQLite database and streamed to websocket clients on /api/v1/stream.
Member positions are restored from the database unless --fresh is given,
and saved again on shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fresh, _ := cmd.Flags().GetBool("fresh")
			saveEvery, _ := cmd.Flags().GetUint64("save-every")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			scenario, err := loadScenario(cmd, cfg)
			if err != nil {
				return err
			}

			eng := engine.NewEngine(scenario)
			eng.DeltaTime = cfg.Simulation.DeltaTime
			eng.Interval = cfg.Simulation.Interval
			eng.SetSpeed(cfg.Simulation.Speed)

			// ── Database ──────────────────────────────────────────────
			var db *persistence.DB
			runID := ""
			if cfg.Storage.Path != "" {
				db, err = openDB(cfg)
				if err != nil {
					return err
				}
				defer db.Close()

				if !fresh {
					if _, err := db.LoadScenarioState(scenario); err != nil {
						return err
					}
				}
				runID, err = db.StartRun(scenario.Name, cfg.Simulation.Seed)
				if err != nil {
					return err
				}
				eng.Subscribe(db.Recorder(runID))
				if saveEvery > 0 {
					eng.Subscribe(func(r engine.TickReport) {
						if r.Tick%saveEvery != 0 {
							return
						}
						if err := db.SaveScenarioState(scenario); err != nil {
							slog.Error("periodic save failed", "error", err)
						}
					})
				}
			}

			// ── HTTP API ──────────────────────────────────────────────
			srv := api.NewServer(eng, db, runID, cfg.API.Port, cfg.API.AdminKey)
			srv.Start()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("scenario running",
				"name", scenario.Name,
				"run", runID,
				"agents", len(scenario.Agents),
				"locations", len(scenario.Locations),
				"tick", scenario.Tick(),
			)
			eng.Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("HTTP shutdown", "error", err)
			}

			if db != nil {
				if err := db.SaveScenarioState(scenario); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stopped %s after %s ticks\n", scenario.Name, humanize.Comma(int64(scenario.Tick())))
			return nil
		},
	}

	cmd.Flags().Bool("fresh", false, "Ignore saved member state")
	cmd.Flags().Uint64("save-every", 600, "Save member state every N ticks (0 disables)")
	return cmd
}
