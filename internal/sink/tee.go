package sink

import (
	"github.com/babelcloud/vkshow/internal/vkcapture/session"
	"github.com/babelcloud/vkshow/internal/vkcapture/surface"
)

// Tee forwards every frame to each sink in order.
type Tee []session.Sink

// Frame implements session.Sink.
func (t Tee) Frame(v *surface.View) {
	for _, s := range t {
		s.Frame(v)
	}
}
