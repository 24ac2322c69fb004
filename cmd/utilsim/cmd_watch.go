package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/utility-sim/internal/api"
	"github.com/talgya/utility-sim/internal/client"
	"github.com/talgya/utility-sim/internal/utility"
)

var errWatchDone = errors.New("watch limit reached")

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the tick stream of a running utilsim",
		Long: `Connect to a running "utilsim run" and print one line per tick, plus
every talk or custom action. --speed changes the server's speed multiplier
first and needs the admin key (api.admin_key or UTILSIM_ADMIN_KEY).

Examples:
  utilsim watch
  utilsim watch --url http://sim.local:8080 --ticks 50
  utilsim watch --speed 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			limit, _ := cmd.Flags().GetInt("ticks")
			speed, _ := cmd.Flags().GetFloat64("speed")
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if url == "" {
				url = fmt.Sprintf("http://localhost:%d", cfg.API.Port)
			}
			c := client.New(url, cfg.API.AdminKey)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if speed > 0 {
				if err := c.SetSpeed(ctx, speed); err != nil {
					return err
				}
			}
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !jsonOut {
				fmt.Fprintf(out, "%s: tick %s, %d agents, speed %sx\n",
					st.Name, humanize.Comma(int64(st.Tick)), st.Agents, humanize.FtoaWithDigits(st.Speed, 2))
			}

			seen := 0
			err = c.Follow(ctx, func(msg api.TickMessage) error {
				if jsonOut {
					if err := writeJSON(out, msg); err != nil {
						return err
					}
				} else {
					printTick(out, msg)
				}
				seen++
				if limit > 0 && seen >= limit {
					return errWatchDone
				}
				return nil
			})
			if errors.Is(err, errWatchDone) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().String("url", "", "API base URL (default http://localhost:<api.port>)")
	cmd.Flags().Int("ticks", 0, "Stop after this many ticks (0 = until interrupted)")
	cmd.Flags().Float64("speed", 0, "Set the server speed multiplier before watching")
	return cmd
}

func printTick(w io.Writer, msg api.TickMessage) {
	active, stalled := 0, 0
	for _, d := range msg.Decisions {
		switch {
		case d.Stalled:
			stalled++
		case d.Action != utility.ActionIdle.String():
			active++
		}
	}
	fmt.Fprintf(w, "tick %s: %d active, %d stalled\n", humanize.Comma(int64(msg.Tick)), active, stalled)
	for _, a := range msg.CustomActions {
		target := a.Target
		if target == "" {
			target = "-"
		}
		if a.Payload != "" {
			fmt.Fprintf(w, "  %s %s -> %s: %q\n", a.Agent, a.Behavior, target, a.Payload)
		} else {
			fmt.Fprintf(w, "  %s %s -> %s\n", a.Agent, a.Behavior, target)
		}
	}
}
