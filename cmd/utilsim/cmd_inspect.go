package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/utility-sim/internal/world"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the member under a point and its latest decision",
		Long: `Advance the scenario --ticks ticks, then report the first agent (or,
failing that, location) whose disc covers (--x, --y).

Examples:
  utilsim inspect --x 12 --y -4
  utilsim inspect --ticks 20 --x 0 --y 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ticks, _ := cmd.Flags().GetInt("ticks")
			x, _ := cmd.Flags().GetFloat64("x")
			y, _ := cmd.Flags().GetFloat64("y")
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			scenario, err := loadScenario(cmd, cfg)
			if err != nil {
				return err
			}
			for i := 0; i < ticks; i++ {
				scenario.Advance(cfg.Simulation.DeltaTime)
			}

			info, ok := scenario.Inspect(world.Vec2{X: x, Y: y})
			if !ok {
				return fmt.Errorf("nothing at (%g, %g) after %d ticks", x, y, ticks)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.Text)
			return nil
		},
	}

	cmd.Flags().Int("ticks", 0, "Ticks to advance before inspecting")
	cmd.Flags().Float64("x", 0, "Point X")
	cmd.Flags().Float64("y", 0, "Point Y")
	return cmd
}
