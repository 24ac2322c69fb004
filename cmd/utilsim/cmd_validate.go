package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/utility-sim/internal/project"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a project file for unknown references and bad parameters",
		Long: `Load and build the project without running it. Reports:
  - references to undefined records, inputs, considerations, behaviors
    and archetypes
  - duplicate names
  - normalization parameters that would divide by zero`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("project")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			f, err := project.Load(path)
			if err != nil {
				return err
			}
			if err := project.Validate(f); err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"project":        f.Name,
					"valid":          true,
					"behaviors":      len(f.Behaviors),
					"considerations": len(f.Considerations),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d inputs, %d considerations, %d behaviors)\n",
				f.Name, len(f.Inputs), len(f.Considerations), len(f.Behaviors))
			return nil
		},
	}
}
