package main

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/utility-sim/internal/engine"
)

func newStepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Advance the scenario a fixed number of ticks and print the outcome",
		Long: `Advance the scenario headlessly, as fast as possible, then print each
agent's position and latest decision.

Examples:
  utilsim step --ticks 100
  utilsim step --ticks 50 --dt 0.5 --record`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ticks, _ := cmd.Flags().GetInt("ticks")
			record, _ := cmd.Flags().GetBool("record")
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dt") {
				cfg.Simulation.DeltaTime, _ = cmd.Flags().GetFloat64("dt")
			}
			if ticks < 0 {
				return fmt.Errorf("ticks must be non-negative, got %d", ticks)
			}

			scenario, err := loadScenario(cmd, cfg)
			if err != nil {
				return err
			}

			if record {
				db, err := openDB(cfg)
				if err != nil {
					return err
				}
				defer db.Close()
				runID, err := db.StartRun(scenario.Name, cfg.Simulation.Seed)
				if err != nil {
					return err
				}
				scenario.Subscribe(db.Recorder(runID))
				slog.Info("recording run", "run", runID)
			}

			stalls := 0
			scenario.Subscribe(func(r engine.TickReport) {
				for _, a := range r.Order {
					if r.Decisions[a].Stalled() {
						stalls++
					}
				}
			})
			for i := 0; i < ticks; i++ {
				scenario.Advance(cfg.Simulation.DeltaTime)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), summarize(scenario))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s ticks, %s agent stalls\n\n",
				scenario.Name, humanize.Comma(int64(scenario.Tick())), humanize.Comma(int64(stalls)))
			printSummary(cmd.OutOrStdout(), summarize(scenario))
			return nil
		},
	}

	cmd.Flags().Int("ticks", 100, "Number of ticks to advance")
	cmd.Flags().Float64("dt", 0, "Tick duration (default from config)")
	cmd.Flags().Bool("record", false, "Log decisions to the configured database")
	return cmd
}

type agentLine struct {
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Behavior string  `json:"behavior"`
	Target   string  `json:"target"`
	Score    float64 `json:"score"`
	Stalled  bool    `json:"stalled"`
}

func summarize(s *engine.Scenario) []agentLine {
	lines := make([]agentLine, 0, len(s.Agents))
	for _, a := range s.Agents {
		l := agentLine{Name: a.Name(), X: a.Pos.X, Y: a.Pos.Y, Stalled: a.Stalled}
		if h := s.Decision(a); h != nil && h.Winner != nil {
			l.Behavior = h.Winner.Behavior.Name
			l.Target = h.Winner.TargetName()
			l.Score = h.Winner.FinalScore()
		}
		lines = append(lines, l)
	}
	return lines
}

func printSummary(w io.Writer, lines []agentLine) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tPOSITION\tBEHAVIOR\tTARGET\tSCORE")
	for _, l := range lines {
		behavior := l.Behavior
		if l.Stalled {
			behavior = "[Stalled]"
		}
		fmt.Fprintf(tw, "%s\t(%.2f, %.2f)\t%s\t%s\t%s\n",
			l.Name, l.X, l.Y, behavior, l.Target, humanize.FtoaWithDigits(l.Score, 3))
	}
	tw.Flush()
}
