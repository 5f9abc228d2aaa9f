package version

import (
	"runtime"
	"time"

	"github.com/babelcloud/vkshow/internal/util"
	"github.com/babelcloud/vkshow/internal/vkcapture/protocol"
	"github.com/babelcloud/vkshow/internal/vkcapture/surface"
)

// These variables will be set at build time via -ldflags
var (
	// Version represents the application version (from git tags)
	Version = "dev"
	// BuildTime is the time when the binary was built
	BuildTime = "unknown"
	// CommitID is the git commit hash
	CommitID = "unknown"
)

// formatBuildTime returns a nicely formatted build time
func formatBuildTime() string {
	if BuildTime == "unknown" {
		return BuildTime
	}

	t, err := time.Parse(time.RFC3339, BuildTime)
	if err != nil {
		return BuildTime
	}

	return t.Format("Mon Jan 2 15:04:05 2006")
}

// Fields returns the version information as printable rows
func Fields() []util.Field {
	return []util.Field{
		{Label: "Version", Value: Version},
		{Label: "Git commit", Value: CommitID},
		{Label: "Built", Value: formatBuildTime()},
		{Label: "Go version", Value: runtime.Version()},
		{Label: "OS/Arch", Value: runtime.GOOS + "/" + runtime.GOARCH},
		{Label: "Handshake size", Value: protocol.HandshakeSize},
		{Label: "Surface message", Value: protocol.SurfaceMessageSize},
		{Label: "Pixel order", Value: surface.PixelOrder},
	}
}
