package surface

import (
	"io"
	"log/slog"

	"github.com/babelcloud/vkshow/internal/vkcapture/protocol"
	"github.com/babelcloud/vkshow/internal/vkcapture/transport"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// SyncFunc issues one cache-sync operation on a descriptor.
type SyncFunc func(fd uintptr, flags uint64) error

// Mapper maps transferred surface handles into the process.
type Mapper struct {
	logger *slog.Logger
	sync   SyncFunc
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger used for mapping diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mapper) {
		m.logger = l
	}
}

// WithSync replaces the DMA-buf sync ioctl.
func WithSync(fn SyncFunc) Option {
	return func(m *Mapper) {
		m.sync = fn
	}
}

// NewMapper creates a Mapper that brackets reads with DMA_BUF_IOCTL_SYNC.
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{
		logger: slog.Default(),
		sync:   DmaBufSync,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mapping is one handle bound to a read-only shared mapping.
type Mapping struct {
	handle   transport.Handle
	data     []byte
	geometry protocol.Geometry
	sync     SyncFunc
	logger   *slog.Logger

	// coherent is set once the handle rejects the sync ioctl as unsupported,
	// meaning it is plain shared memory without a device cache.
	coherent bool
	view     *View
}

// Map queries the true size of h and maps all of it. On failure the caller
// still owns h and must close it.
func (m *Mapper) Map(h transport.Handle, g protocol.Geometry) (*Mapping, error) {
	fd := int(h.Fd())

	size, err := unix.Seek(fd, 0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query surface size")
	}
	if _, err := unix.Seek(fd, 0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "failed to rewind surface handle")
	}
	if size <= 0 {
		return nil, errors.Errorf("surface handle reports size %d", size)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to map %d byte surface", size)
	}

	m.logger.Debug("Surface mapped", "fd", fd, "size", size,
		"width", g.Width, "height", g.Height, "stride", g.Stride)

	return &Mapping{
		handle:   h,
		data:     data,
		geometry: g,
		sync:     m.sync,
		logger:   m.logger,
	}, nil
}

// Geometry returns the declared geometry recorded at map time.
func (mp *Mapping) Geometry() protocol.Geometry {
	return mp.geometry
}

// Len returns the true byte length of the mapping.
func (mp *Mapping) Len() int {
	return len(mp.data)
}

// Read runs fn on a view of the surface inside a sync bracket. It returns
// ErrNotReadable when the bracket cannot be opened and ErrSyncRace when the
// declared geometry does not fit the mapping; fn is not called in either case.
func (mp *Mapping) Read(fn func(*View)) error {
	if mp.data == nil {
		return ErrReleased
	}

	if err := mp.begin(); err != nil {
		return errors.Wrap(ErrNotReadable, err.Error())
	}
	defer mp.end()

	g := mp.geometry
	if g.Width <= 0 || g.Height <= 0 || int64(g.Stride) < int64(g.Width)*BytesPerPixel {
		return ErrSyncRace
	}
	need := g.ByteLength()
	if need > int64(len(mp.data)) {
		return ErrSyncRace
	}

	v := &View{
		pixels: mp.data[:need:need],
		Width:  g.Width,
		Height: g.Height,
		Stride: g.Stride,
	}
	mp.view = v
	defer func() {
		v.detach()
		mp.view = nil
	}()

	fn(v)
	return nil
}

// Release detaches any outstanding view, unmaps, and returns the handle so
// the caller can close it. The handle is withheld if unmapping fails.
func (mp *Mapping) Release() (transport.Handle, error) {
	if mp.data == nil {
		return nil, ErrReleased
	}
	if mp.view != nil {
		mp.view.detach()
		mp.view = nil
	}

	if err := unix.Munmap(mp.data); err != nil {
		return nil, errors.Wrap(err, "failed to unmap surface")
	}
	mp.data = nil

	h := mp.handle
	mp.handle = nil
	return h, nil
}

func (mp *Mapping) begin() error {
	if mp.coherent {
		return nil
	}
	err := mp.sync(mp.handle.Fd(), DmaBufSyncStart|DmaBufSyncRead)
	if errors.Is(err, unix.ENOTTY) {
		mp.coherent = true
		mp.logger.Debug("Surface handle is not a dma-buf, reading without sync", "fd", mp.handle.Fd())
		return nil
	}
	return err
}

func (mp *Mapping) end() {
	if mp.coherent {
		return
	}
	if err := mp.sync(mp.handle.Fd(), DmaBufSyncEnd|DmaBufSyncRead); err != nil {
		mp.logger.Debug("Surface sync end failed", "error", err.Error())
	}
}
