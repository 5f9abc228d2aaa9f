package cmd

import (
	"time"

	"github.com/babelcloud/vkshow/config"
	"github.com/spf13/cobra"
)

// ShowOptions holds the settings of a viewer run.
type ShowOptions struct {
	Address         string
	PollInterval    time.Duration
	HTTPAddr        string
	StatsInterval   time.Duration
	SnapshotTimeout time.Duration
}

// NewShowCommand creates the command that runs the frame receiver
func NewShowCommand() *cobra.Command {
	opts := &ShowOptions{}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Receive and display frames from a vkcapture producer",
		Long: `Listen on the vkcapture rendezvous socket, accept one producer at a time and
map every surface it shares. Frames are read once per poll interval.

Press q (on an interactive terminal) or Ctrl+C to stop.`,
		Example: `  vkshow show
  vkshow show --http 127.0.0.1:8088
  vkshow show --address @/com/obsproject/vkcapture --stats-interval 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.resolve(cmd)
			return runShow(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Address, "address", "", "Socket address producers connect to (leading @ selects the abstract namespace)")
	flags.DurationVar(&opts.PollInterval, "poll-interval", 0, "How long each tick waits for socket activity")
	flags.StringVar(&opts.HTTPAddr, "http", "", "Serve /snapshot.png, /metrics and /healthz on this address")
	flags.DurationVar(&opts.StatsInterval, "stats-interval", 0, "Export rate reporting interval (0 uses the configured value)")
	flags.DurationVar(&opts.SnapshotTimeout, "snapshot-timeout", 0, "How long a snapshot request waits for a frame")

	return cmd
}

// resolve fills every option not set on the command line from config.
func (o *ShowOptions) resolve(cmd *cobra.Command) {
	flags := cmd.Flags()
	if !flags.Changed("address") {
		o.Address = config.GetSocketAddress()
	}
	if !flags.Changed("poll-interval") {
		o.PollInterval = config.GetPollInterval()
	}
	if !flags.Changed("http") {
		o.HTTPAddr = config.GetHTTPAddr()
	}
	if !flags.Changed("stats-interval") {
		o.StatsInterval = config.GetStatsInterval()
	}
	if !flags.Changed("snapshot-timeout") {
		o.SnapshotTimeout = config.GetSnapshotTimeout()
	}
}
