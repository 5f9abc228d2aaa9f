package sink

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/babelcloud/vkshow/internal/vkcapture/protocol"
	"github.com/babelcloud/vkshow/internal/vkcapture/session"
	"github.com/babelcloud/vkshow/internal/vkcapture/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
	clocktesting "k8s.io/utils/clock/testing"
)

// mapSurface maps a memfd holding pixels with the given geometry.
func mapSurface(t *testing.T, pixels []byte, g protocol.Geometry) *surface.Mapping {
	t.Helper()
	fd, err := unix.MemfdCreate("sink-test", unix.MFD_CLOEXEC)
	require.NoError(t, err)
	f := os.NewFile(uintptr(fd), "sink-test")
	_, err = f.Write(pixels)
	require.NoError(t, err)

	mp, err := surface.NewMapper().Map(f, g)
	require.NoError(t, err)
	t.Cleanup(func() {
		h, err := mp.Release()
		if err == nil {
			h.Close()
		}
	})
	return mp
}

func TestStatsReportsGeometryAndRate(t *testing.T) {
	var out bytes.Buffer
	clk := clocktesting.NewFakePassiveClock(time.Unix(1000, 0))
	stats := NewStats(slog.New(slog.NewTextHandler(&out, nil)), time.Second, clk)

	mp := mapSurface(t, make([]byte, 16*4), protocol.Geometry{Width: 4, Height: 4, Stride: 16})

	for i := 0; i < 30; i++ {
		require.NoError(t, mp.Read(stats.Frame))
		clk.SetTime(clk.Now().Add(50 * time.Millisecond))
	}

	assert.Equal(t, uint64(30), stats.Total())
	assert.InDelta(t, 20.0, stats.Rate(), 0.5)
	assert.Equal(t, protocol.Geometry{Width: 4, Height: 4, Stride: 16}, stats.geometry)
	assert.Contains(t, out.String(), `msg="Export rate"`)
	assert.Contains(t, out.String(), "order=BGRA")
}

func TestToNRGBACropsPaddingAndSwizzles(t *testing.T) {
	// 2x2 image, stride 12 (one padding pixel per row)
	pixels := []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 0xee, 0xee, 0xee, 0xee,
		9, 10, 11, 12, 13, 14, 15, 16, 0xee, 0xee, 0xee, 0xee,
	}
	mp := mapSurface(t, pixels, protocol.Geometry{Width: 2, Height: 2, Stride: 12})

	var img []byte
	require.NoError(t, mp.Read(func(v *surface.View) {
		img = ToNRGBA(v).Pix
	}))

	assert.Equal(t, []byte{
		3, 2, 1, 4, 7, 6, 5, 8,
		11, 10, 9, 12, 15, 14, 13, 16,
	}, img)
}

func TestSnapshotCapture(t *testing.T) {
	snap := NewSnapshot()
	mp := mapSurface(t, []byte{10, 20, 30, 40}, protocol.Geometry{Width: 1, Height: 1, Stride: 4})

	// Without a pending request a frame is a no-op
	require.NoError(t, mp.Read(snap.Frame))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan []byte, 1)
	go func() {
		img, err := snap.Capture(ctx)
		if err != nil {
			done <- nil
			return
		}
		done <- img.Pix
	}()

	deadline := time.After(5 * time.Second)
	for {
		require.NoError(t, mp.Read(snap.Frame))
		select {
		case pix := <-done:
			assert.Equal(t, []byte{30, 20, 10, 40}, pix)
			return
		case <-deadline:
			t.Fatal("snapshot never delivered")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestSnapshotCaptureTimeout(t *testing.T) {
	snap := NewSnapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := snap.Capture(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTee(t *testing.T) {
	var a, b int
	tee := Tee{
		session.SinkFunc(func(*surface.View) { a++ }),
		session.SinkFunc(func(*surface.View) { b++ }),
	}
	mp := mapSurface(t, make([]byte, 4), protocol.Geometry{Width: 1, Height: 1, Stride: 4})

	require.NoError(t, mp.Read(tee.Frame))
	require.NoError(t, mp.Read(tee.Frame))
	assert.Equal(t, 2, a)
	assert.Equal(t, 2, b)
}
