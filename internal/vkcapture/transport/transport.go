package transport

import (
	"errors"
)

// DefaultAddress is the abstract socket name vkcapture producers connect to.
const DefaultAddress = "@/com/obsproject/vkcapture"

// MaxHandles is the ancillary capacity of a single receive.
const MaxHandles = 4

var (
	// ErrConnectionLost is returned by Receive when the peer reset the stream.
	ErrConnectionLost = errors.New("connection lost")
	// ErrDisconnected is returned by Send when the peer is gone.
	ErrDisconnected = errors.New("peer disconnected")
	// ErrAddressInUse is returned by Listen when another consumer owns the address.
	ErrAddressInUse = errors.New("address already in use")
)

// Handle is a transferred descriptor owned by the receiver. *os.File
// satisfies it.
type Handle interface {
	Fd() uintptr
	Close() error
}

// Message is one receive: payload bytes and any descriptors that rode along.
type Message struct {
	Data    []byte
	Handles []Handle
	// Truncated is set when the kernel dropped descriptors that did not fit
	// the ancillary buffer.
	Truncated bool
}

// CloseHandles closes every handle in hs, skipping nils, and returns the
// first error.
func CloseHandles(hs []Handle) error {
	var first error
	for _, h := range hs {
		if h == nil {
			continue
		}
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
