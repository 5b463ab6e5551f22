package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"tabload/internal/config"
)

func registerLintCmd(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:     "lint",
		Short:   "Validate a job file and exit",
		Example: `  tabload lint -c jobs/schools.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.configPath == "" {
				return fmt.Errorf("lint: --config is required")
			}
			issues := config.ValidateJob(a.job)
			printIssues(cmd.OutOrStdout(), issues)
			if config.HasErrors(issues) {
				return fmt.Errorf("%w: %s is invalid", ErrChecksFailed, a.configPath)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", a.configPath)
			return nil
		},
	}
	parent.AddCommand(cmd)
}
