package cmd

import (
	"github.com/babelcloud/vkshow/internal/util"
	"github.com/babelcloud/vkshow/internal/version"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			util.RenderFields(cmd.OutOrStdout(), version.Fields())
		},
	}
}
