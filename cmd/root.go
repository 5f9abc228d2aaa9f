package cmd

import (
	"fmt"

	"github.com/babelcloud/vkshow/internal/util"
	"github.com/babelcloud/vkshow/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vkshow",
	Short: "Display frames shared by a vkcapture producer",
	Long: `vkshow receives GPU frames from a vkcapture producer over a local unix socket and maps them without copying. It reports the export rate and can serve the current frame and receiver metrics over HTTP.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		util.InitLogger(verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flag("version").Changed {
			fmt.Printf("vkshow version %s, build %s\n", version.Version, version.CommitID)
			return nil
		}
		return cmd.Help()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and exit")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	rootCmd.AddCommand(NewShowCommand())
	rootCmd.AddCommand(NewVersionCommand())

	// Enable custom help output ordering
	setupHelpCommand(rootCmd)
}
