package sink

import (
	"context"
	"image"

	"github.com/babelcloud/vkshow/internal/vkcapture/surface"
)

// Snapshot hands a converted copy of the current surface to other
// goroutines. Requests are picked up during the render tick; the tick never
// waits for a requester.
type Snapshot struct {
	requests chan chan *image.NRGBA
}

// NewSnapshot creates a Snapshot sink.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		requests: make(chan chan *image.NRGBA),
	}
}

// Frame implements session.Sink. It runs on the receiver goroutine.
func (s *Snapshot) Frame(v *surface.View) {
	select {
	case reply := <-s.requests:
		// reply is buffered, this never blocks
		reply <- ToNRGBA(v)
	default:
	}
}

// Capture waits for the next exported frame and returns it as an image.
func (s *Snapshot) Capture(ctx context.Context) (*image.NRGBA, error) {
	reply := make(chan *image.NRGBA, 1)
	select {
	case s.requests <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case img := <-reply:
		return img, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ToNRGBA copies the visible area of v, swizzling BGRA to RGBA. Row padding
// beyond width*4 is dropped.
func ToNRGBA(v *surface.View) *image.NRGBA {
	w, h := int(v.Width), int(v.Height)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := v.Row(y)
		if src == nil {
			break
		}
		dst := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < len(src); x += 4 {
			dst[x+0] = src[x+2]
			dst[x+1] = src[x+1]
			dst[x+2] = src[x+0]
			dst[x+3] = src[x+3]
		}
	}
	return img
}
