package session

import (
	"io"
	"log/slog"

	"github.com/babelcloud/vkshow/internal/metrics"
	"github.com/babelcloud/vkshow/internal/vkcapture/protocol"
	"github.com/babelcloud/vkshow/internal/vkcapture/surface"
	"github.com/babelcloud/vkshow/internal/vkcapture/transport"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Peer is a connected producer.
type Peer interface {
	Fd() int
	Receive() (transport.Message, error)
	Send(b []byte) error
	Close() error
}

// Surface is a mapped producer surface.
type Surface interface {
	Read(fn func(*surface.View)) error
	Release() (transport.Handle, error)
}

// Mapper turns a received handle into a Surface. On error the handle is
// still owned by the caller.
type Mapper interface {
	Map(h transport.Handle, g protocol.Geometry) (Surface, error)
}

// MapperFunc adapts a function to Mapper.
type MapperFunc func(h transport.Handle, g protocol.Geometry) (Surface, error)

func (f MapperFunc) Map(h transport.Handle, g protocol.Geometry) (Surface, error) {
	return f(h, g)
}

// Sink receives the view of the current surface once per render tick. The
// view must not be retained past the call.
type Sink interface {
	Frame(v *surface.View)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(v *surface.View)

func (f SinkFunc) Frame(v *surface.View) {
	f(v)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithMetrics sets the metrics the session reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// Session owns at most one producer and at most one mapped surface, and
// executes the effects Transition asks for. It is not safe for concurrent use.
type Session struct {
	state   State
	mapper  Mapper
	logger  *slog.Logger
	metrics *metrics.Metrics

	peer    Peer
	peerID  string
	pending Peer
	reason  string

	surface  Surface
	released transport.Handle
	received []transport.Handle
}

// New creates an idle session.
func New(mapper Mapper, opts ...Option) *Session {
	s := &Session{
		mapper: mapper,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// PeerID returns the identifier of the current producer, or "".
func (s *Session) PeerID() string {
	return s.peerID
}

// PeerFd returns the descriptor of the current producer for polling.
func (s *Session) PeerFd() (int, bool) {
	if s.peer == nil {
		return -1, false
	}
	return s.peer.Fd(), true
}

// Accept tears down any current producer and adopts p.
func (s *Session) Accept(p Peer) {
	s.pending = p
	s.reason = metrics.ReasonSuperseded
	s.dispatch(Event{Kind: EventAccepted})
}

// HandleReadable performs one receive on the current producer and acts on it.
func (s *Session) HandleReadable() {
	if s.peer == nil {
		return
	}

	msg, err := s.peer.Receive()
	if err != nil {
		if err == io.EOF {
			s.reason = metrics.ReasonEOF
			s.dispatch(Event{Kind: EventPeerClosed})
			return
		}
		s.log().Warn("Connection lost", "error", err.Error())
		s.reason = metrics.ReasonLost
		s.dispatch(Event{Kind: EventPeerLost})
		return
	}

	s.received = msg.Handles
	defer s.dropReceived()
	if msg.Truncated {
		s.log().Warn("Producer sent more descriptors than fit, extras were dropped",
			"handles", len(msg.Handles))
	}

	desc, ok := protocol.DecodeSurfaceMessage(msg.Data)
	if !ok {
		s.dispatch(Event{Kind: EventIgnored, Handles: len(msg.Handles)})
		return
	}
	s.log().Debug("Surface message",
		"width", desc.Width, "height", desc.Height, "format", desc.PixelFormat,
		"strides", desc.PlaneA, "offsets", desc.PlaneB, "planes", desc.PlaneCount,
		"drm_format", desc.DrmFormat, "modifier", desc.Modifier, "handles", len(msg.Handles))
	s.dispatch(Event{Kind: EventSurface, Descriptor: desc, Handles: len(msg.Handles)})
}

// Tick hands the current surface to sink inside a sync bracket. It reports
// whether a frame was exported.
func (s *Session) Tick(sink Sink) bool {
	if s.state.Phase != ConnectedMapped || s.surface == nil || sink == nil {
		return false
	}

	err := s.surface.Read(sink.Frame)
	switch {
	case err == nil:
		s.metrics.FrameExported()
		return true
	case errors.Is(err, surface.ErrSyncRace):
		s.metrics.FrameSkipped(metrics.SkipRace)
	default:
		s.metrics.FrameSkipped(metrics.SkipNotReadable)
	}
	return false
}

// Close releases everything the session owns.
func (s *Session) Close() {
	if s.pending != nil {
		s.pending.Close()
		s.pending = nil
	}
	s.reason = metrics.ReasonShutdown
	s.dispatch(Event{Kind: EventShutdown})
}

func (s *Session) dispatch(ev Event) {
	queue := []Event{ev}
	for len(queue) > 0 {
		ev, queue = queue[0], queue[1:]

		prev := s.state.Phase
		next, effects := Transition(s.state, ev)
		s.state = next

		for _, e := range effects {
			if follow, ok := s.apply(e); ok {
				queue = append(queue, follow)
			}
		}

		if next.Phase != prev {
			s.metrics.Phase(int(next.Phase))
			s.logger.Debug("Session transition", "from", prev, "to", next.Phase)
		}
	}
}

func (s *Session) apply(e Effect) (Event, bool) {
	switch e.Kind {
	case EffectClosePeer:
		if s.peer == nil {
			return Event{}, false
		}
		if err := s.peer.Close(); err != nil {
			s.log().Debug("Peer close failed", "error", err.Error())
		}
		s.log().Info("Producer disconnected", "reason", s.reason)
		s.metrics.Disconnected(s.reason)
		s.peer = nil
		s.peerID = ""

	case EffectReleaseSurface:
		if s.surface == nil {
			return Event{}, false
		}
		h, err := s.surface.Release()
		if err != nil {
			s.log().Error("Failed to release surface, leaking its handle", "error", err.Error())
		}
		s.released = h
		s.surface = nil
		s.metrics.SurfaceReleased()

	case EffectCloseSurfaceHandle:
		if s.released == nil {
			return Event{}, false
		}
		if err := s.released.Close(); err != nil {
			s.log().Debug("Surface handle close failed", "error", err.Error())
		}
		s.released = nil

	case EffectAdoptPeer:
		s.peer = s.pending
		s.pending = nil
		s.peerID = uuid.NewString()
		s.metrics.Connected()
		s.log().Info("Producer connected")

	case EffectSendHandshake:
		hs := protocol.EncodeHandshake()
		if err := s.peer.Send(hs[:]); err != nil {
			s.log().Warn("Handshake failed", "error", err.Error())
			s.reason = metrics.ReasonHandshake
			return Event{Kind: EventHandshakeFailed}, true
		}

	case EffectDiscardHandles:
		if e.From < len(s.received) {
			transport.CloseHandles(s.received[e.From:])
			for i := e.From; i < len(s.received); i++ {
				s.received[i] = nil
			}
		}

	case EffectMapSurface:
		if len(s.received) == 0 || s.received[0] == nil {
			return Event{Kind: EventMapFailed}, true
		}
		h := s.received[0]
		surf, err := s.mapper.Map(h, e.Geometry)
		if err != nil {
			s.log().Error("Failed to map surface", "fd", h.Fd(), "error", err.Error())
			s.metrics.MapFailed()
			return Event{Kind: EventMapFailed}, true
		}
		s.received[0] = nil
		s.surface = surf
		s.metrics.SurfaceMapped(e.Geometry.Width, e.Geometry.Height, e.Geometry.Stride)
		s.log().Info("Texture update",
			"width", e.Geometry.Width, "height", e.Geometry.Height,
			"stride", e.Geometry.Stride, "fd", h.Fd())
	}
	return Event{}, false
}

// dropReceived closes any received handle no effect claimed.
func (s *Session) dropReceived() {
	transport.CloseHandles(s.received)
	s.received = nil
}

func (s *Session) log() *slog.Logger {
	if s.peerID == "" {
		return s.logger
	}
	return s.logger.With("peer", s.peerID)
}
