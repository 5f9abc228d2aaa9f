package sink

import (
	"log/slog"
	"time"

	"github.com/babelcloud/vkshow/internal/vkcapture/protocol"
	"github.com/babelcloud/vkshow/internal/vkcapture/surface"
	"k8s.io/utils/clock"
)

// Stats counts exports and reports the export rate once per interval. An
// export is one tick that read the surface; the producer may not have drawn
// a new image in between, so the rate follows the poll interval rather than
// the producer's frame rate.
type Stats struct {
	clock    clock.PassiveClock
	interval time.Duration
	logger   *slog.Logger

	geometry    protocol.Geometry
	total       uint64
	windowStart time.Time
	windowCount uint64
	lastRate    float64
}

// NewStats creates a Stats sink. A zero interval disables rate reports.
func NewStats(logger *slog.Logger, interval time.Duration, clk clock.PassiveClock) *Stats {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stats{
		clock:    clk,
		interval: interval,
		logger:   logger,
	}
}

// Frame implements session.Sink.
func (s *Stats) Frame(v *surface.View) {
	now := s.clock.Now()
	g := protocol.Geometry{Width: v.Width, Height: v.Height, Stride: v.Stride}
	if g != s.geometry {
		s.logger.Info("Displaying surface", "width", g.Width, "height", g.Height, "stride", g.Stride,
			"order", surface.PixelOrder)
		s.geometry = g
	}

	s.total++
	if s.windowStart.IsZero() {
		s.windowStart = now
		return
	}
	s.windowCount++

	if s.interval <= 0 {
		return
	}
	if elapsed := now.Sub(s.windowStart); elapsed >= s.interval {
		s.lastRate = float64(s.windowCount) / elapsed.Seconds()
		s.logger.Info("Export rate", "per_second", s.lastRate, "exports", s.total,
			"width", g.Width, "height", g.Height)
		s.windowStart = now
		s.windowCount = 0
	}
}

// Total returns the number of exports seen.
func (s *Stats) Total() uint64 {
	return s.total
}

// Rate returns the exports per second of the last completed interval.
func (s *Stats) Rate() float64 {
	return s.lastRate
}
