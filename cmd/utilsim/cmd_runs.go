package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs [scenario]",
		Short: "List recorded runs of a scenario and their most frequent behaviors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.Runs(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no runs recorded for %q\n", args[0])
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSEED\tSTARTED\tTOP BEHAVIOR\tWINS")
			for _, r := range runs {
				started := r.StartedAt
				if t, err := time.Parse(time.RFC3339, r.StartedAt); err == nil {
					started = humanize.Time(t)
				}
				top, wins := "-", 0
				counts, err := db.WinCounts(r.ID)
				if err != nil {
					return err
				}
				for _, c := range counts {
					if c.Behavior != "" {
						top, wins = c.Behavior, c.Wins
						break
					}
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", r.ID, r.Seed, started, top, humanize.Comma(int64(wins)))
			}
			return tw.Flush()
		},
	}
}
