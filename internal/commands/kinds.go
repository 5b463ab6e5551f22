package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"tabload/internal/storage"
)

func registerKindsCmd(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List registered storage kinds",
		Args:  cobra.NoArgs,
		// No job or logging setup needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, k := range storage.ListKinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
	parent.AddCommand(cmd)
}
