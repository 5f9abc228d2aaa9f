package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every collector.
const Namespace = "vkshow"

// Disconnect reasons
const (
	ReasonEOF        = "eof"
	ReasonLost       = "lost"
	ReasonHandshake  = "handshake"
	ReasonSuperseded = "superseded"
	ReasonShutdown   = "shutdown"
)

// Skip reasons
const (
	SkipRace        = "race"
	SkipNotReadable = "not_readable"
)

// Metrics holds the receiver collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	connections    prometheus.Counter
	disconnects    *prometheus.CounterVec
	surfacesMapped prometheus.Counter
	mapFailures    prometheus.Counter
	framesExported prometheus.Counter
	framesSkipped  *prometheus.CounterVec
	phase          prometheus.Gauge
	width          prometheus.Gauge
	height         prometheus.Gauge
	stride         prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		connections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_total",
			Help:      "Producer connections accepted",
		}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "disconnects_total",
			Help:      "Producer sessions torn down, by reason",
		}, []string{"reason"}),
		surfacesMapped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "surfaces_mapped_total",
			Help:      "Surfaces mapped, including resizes",
		}),
		mapFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "map_failures_total",
			Help:      "Surface handles that could not be mapped",
		}),
		framesExported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_exported_total",
			Help:      "Render ticks that handed a view to the sink",
		}),
		framesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_skipped_total",
			Help:      "Render ticks skipped with a mapped surface, by reason",
		}, []string{"reason"}),
		phase: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "session_phase",
			Help:      "0 idle, 1 connected without surface, 2 connected and mapped",
		}),
		width: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "surface_width_pixels",
			Help:      "Width of the mapped surface",
		}),
		height: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "surface_height_pixels",
			Help:      "Height of the mapped surface",
		}),
		stride: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "surface_stride_bytes",
			Help:      "Row stride of the mapped surface",
		}),
	}
}

func (m *Metrics) Connected() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) Disconnected(reason string) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(reason).Inc()
}

func (m *Metrics) SurfaceMapped(width, height, stride int32) {
	if m == nil {
		return
	}
	m.surfacesMapped.Inc()
	m.width.Set(float64(width))
	m.height.Set(float64(height))
	m.stride.Set(float64(stride))
}

func (m *Metrics) SurfaceReleased() {
	if m == nil {
		return
	}
	m.width.Set(0)
	m.height.Set(0)
	m.stride.Set(0)
}

func (m *Metrics) MapFailed() {
	if m == nil {
		return
	}
	m.mapFailures.Inc()
}

func (m *Metrics) FrameExported() {
	if m == nil {
		return
	}
	m.framesExported.Inc()
}

func (m *Metrics) FrameSkipped(reason string) {
	if m == nil {
		return
	}
	m.framesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Phase(p int) {
	if m == nil {
		return
	}
	m.phase.Set(float64(p))
}
