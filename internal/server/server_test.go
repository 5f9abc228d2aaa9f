package server

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/babelcloud/vkshow/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSnapshotter struct {
	img *image.NRGBA
	err error
}

func (s stubSnapshotter) Capture(ctx context.Context) (*image.NRGBA, error) {
	return s.img, s.err
}

func TestSnapshotEndpoint(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(1, 0, color.NRGBA{R: 255, A: 255})

	srv := NewPreviewServer(":0", stubSnapshotter{img: img}, nil, time.Second, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot.png", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	decoded, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 1), decoded.Bounds())
	r, _, _, _ := decoded.At(1, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestSnapshotUnavailable(t *testing.T) {
	srv := NewPreviewServer(":0", stubSnapshotter{err: context.DeadlineExceeded}, nil, time.Millisecond, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot.png", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv = NewPreviewServer(":0", nil, nil, time.Millisecond, nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsAndHealthz(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Connected()

	srv := NewPreviewServer("127.0.0.1:0", nil, reg, time.Second, nil)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "vkshow_connections_total 1")

	resp, err = http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
