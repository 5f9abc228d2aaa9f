package surface

import (
	"errors"
)

// BytesPerPixel of the exported BGRA layout.
const BytesPerPixel = 4

// PixelOrder is the channel order of every exported view.
const PixelOrder = "BGRA"

var (
	// ErrSyncRace means the last-seen geometry does not fit the mapping,
	// usually because a resize is in flight. The tick is skipped.
	ErrSyncRace = errors.New("surface geometry does not fit mapping")
	// ErrNotReadable means the cache-sync bracket could not be opened.
	ErrNotReadable = errors.New("surface not readable")
	// ErrReleased is returned when reading a mapping after Release.
	ErrReleased = errors.New("surface released")
)

// View is a borrowed window onto mapped surface memory. It is only valid
// inside the Read callback that produced it; afterwards Pixels returns nil.
type View struct {
	pixels []byte
	Width  int32
	Height int32
	Stride int32
}

// Pixels returns stride*height bytes of BGRA rows.
func (v *View) Pixels() []byte {
	return v.pixels
}

// Row returns the visible width*4 bytes of row y, or nil out of range.
func (v *View) Row(y int) []byte {
	if v.pixels == nil || y < 0 || y >= int(v.Height) {
		return nil
	}
	start := y * int(v.Stride)
	return v.pixels[start : start+int(v.Width)*BytesPerPixel]
}

// Valid reports whether the view may still be read.
func (v *View) Valid() bool {
	return v.pixels != nil
}

func (v *View) detach() {
	v.pixels = nil
}
