package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/babelcloud/vkshow/internal/vkcapture/protocol"
	"github.com/babelcloud/vkshow/internal/vkcapture/surface"
	"github.com/babelcloud/vkshow/internal/vkcapture/transport"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DefaultPollInterval bounds how long a step waits for I/O before ticking.
const DefaultPollInterval = 10 * time.Millisecond

// Config configures a Receiver.
type Config struct {
	Address      string
	PollInterval time.Duration
}

// SurfaceMapper adapts a surface.Mapper to Mapper.
func SurfaceMapper(m *surface.Mapper) Mapper {
	return MapperFunc(func(h transport.Handle, g protocol.Geometry) (Surface, error) {
		mp, err := m.Map(h, g)
		if err != nil {
			return nil, err
		}
		return mp, nil
	})
}

// Receiver drives a Session from a single goroutine: poll the listener and
// the current producer, act on readiness, then run one render tick.
type Receiver struct {
	cfg      Config
	listener *transport.Listener
	session  *Session
	sink     Sink
	logger   *slog.Logger
}

// NewReceiver binds the rendezvous address. Bind failure is the only fatal
// error a receiver reports.
func NewReceiver(cfg Config, sink Sink, opts ...Option) (*Receiver, error) {
	if cfg.Address == "" {
		cfg.Address = transport.DefaultAddress
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	l, err := transport.Listen(cfg.Address)
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		cfg:      cfg,
		listener: l,
		sink:     sink,
	}
	r.session = New(nil, opts...)
	r.logger = r.session.logger
	r.session.mapper = SurfaceMapper(surface.NewMapper(surface.WithLogger(r.logger)))
	return r, nil
}

// Session returns the session the receiver drives.
func (r *Receiver) Session() *Session {
	return r.session
}

// Addr returns the bound rendezvous address.
func (r *Receiver) Addr() string {
	return r.listener.Addr()
}

// Run steps until ctx is done. Teardown runs on every exit path.
func (r *Receiver) Run(ctx context.Context) error {
	defer r.Close()

	r.logger.Info("Viewer started, waiting for producer", "address", r.listener.Addr())
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := r.Step(); err != nil {
			return err
		}
	}
}

// Step waits up to the poll interval for I/O, handles it, and ticks once.
func (r *Receiver) Step() error {
	fds := []unix.PollFd{{Fd: int32(r.listener.Fd()), Events: unix.POLLIN}}
	peerFd, hasPeer := r.session.PeerFd()
	if hasPeer {
		fds = append(fds, unix.PollFd{Fd: int32(peerFd), Events: unix.POLLIN})
	}

	timeout := int(r.cfg.PollInterval / time.Millisecond)
	if timeout < 1 {
		timeout = 1
	}

	n, err := unix.Poll(fds, timeout)
	if err != nil && err != unix.EINTR {
		return errors.Wrap(err, "poll")
	}

	if err == nil && n > 0 {
		accepted := false
		if fds[0].Revents&unix.POLLIN != 0 {
			accepted = r.accept()
		}
		// A peer superseded in this step is already closed.
		if hasPeer && !accepted && fds[1].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			r.session.HandleReadable()
		}
	}

	r.session.Tick(r.sink)
	return nil
}

// Close tears down the session before the listener.
func (r *Receiver) Close() error {
	r.session.Close()
	return r.listener.Close()
}

func (r *Receiver) accept() bool {
	ch, err := r.listener.Accept()
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ECONNABORTED) {
			return false
		}
		r.logger.Warn("Accept failed", "error", err.Error())
		return false
	}
	r.session.Accept(ch)
	return true
}
