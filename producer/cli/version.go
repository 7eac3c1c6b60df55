package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(props Props) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "producer", props.Version)

			return err
		},
	}
}
