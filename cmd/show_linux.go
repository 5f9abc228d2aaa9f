package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/babelcloud/vkshow/internal/metrics"
	"github.com/babelcloud/vkshow/internal/server"
	"github.com/babelcloud/vkshow/internal/sink"
	"github.com/babelcloud/vkshow/internal/util"
	"github.com/babelcloud/vkshow/internal/vkcapture/session"
	"github.com/babelcloud/vkshow/internal/vkcapture/transport"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func runShow(cmd *cobra.Command, opts *ShowOptions) error {
	logger := util.GetLogger()
	out := util.Output()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	stats := sink.NewStats(logger, opts.StatsInterval, nil)
	sinks := sink.Tee{stats}

	var preview *server.PreviewServer
	if opts.HTTPAddr != "" {
		snapshots := sink.NewSnapshot()
		sinks = append(sinks, snapshots)
		preview = server.NewPreviewServer(opts.HTTPAddr, snapshots, registry, opts.SnapshotTimeout, logger)
	}

	receiver, err := session.NewReceiver(session.Config{
		Address:      opts.Address,
		PollInterval: opts.PollInterval,
	}, sinks, session.WithLogger(logger), session.WithMetrics(m))
	if err != nil {
		if errors.Is(err, transport.ErrAddressInUse) {
			return errors.Wrap(err, "another viewer is already listening")
		}
		return errors.Wrap(err, "failed to start receiver")
	}

	if preview != nil {
		if err := preview.Start(); err != nil {
			receiver.Close()
			return err
		}
		defer preview.Stop()
		fmt.Fprintf(out, "Preview available at: %s\n", color.CyanString("http://%s/snapshot.png", preview.Addr()))
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle system signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(out, "Waiting for producer on %s\n", color.CyanString(receiver.Addr()))
	if restore := watchQuitKey(cancel); restore != nil {
		defer restore()
		fmt.Fprintf(out, "(Press %s to stop.)\n", color.New(color.FgYellow, color.Bold).Sprint("q"))
	} else {
		fmt.Fprintf(out, "(Press %s to stop.)\n", color.New(color.FgYellow, color.Bold).Sprint("Ctrl+C"))
	}

	runErr := receiver.Run(ctx)

	rate := "n/a"
	if stats.Rate() > 0 {
		rate = fmt.Sprintf("%.1f/s", stats.Rate())
	}
	util.RenderFields(out, []util.Field{
		{Label: "Exports", Value: stats.Total()},
		{Label: "Export rate", Value: rate},
	})
	return runErr
}

// watchQuitKey puts an interactive stdin into raw mode and cancels on q,
// Q or Ctrl+C. It returns nil when stdin is not a terminal.
func watchQuitKey(cancel context.CancelFunc) func() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		util.GetLogger().Debug("Failed to set terminal to raw mode", "error", err.Error())
		return nil
	}
	util.SetRawTerminal(true)

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 1 && isQuitKey(buf[0]) {
				cancel()
				return
			}
		}
	}()

	return func() {
		util.SetRawTerminal(false)
		term.Restore(fd, oldState)
	}
}

func isQuitKey(b byte) bool {
	switch b {
	case 'q', 'Q', 0x03:
		return true
	}
	return false
}
