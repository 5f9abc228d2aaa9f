package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = newViper()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
	}
}

func newViper() *viper.Viper {
	v := viper.New()

	// Set default values
	v.SetDefault("socket.address", "@/com/obsproject/vkcapture")
	v.SetDefault("poll.interval", 10*time.Millisecond)
	v.SetDefault("http.addr", "")
	v.SetDefault("stats.interval", 5*time.Second)
	v.SetDefault("snapshot.timeout", 2*time.Second)

	// Environment variables
	v.AutomaticEnv()
	v.BindEnv("socket.address", "VKSHOW_SOCKET_ADDRESS")
	v.BindEnv("poll.interval", "VKSHOW_POLL_INTERVAL")
	v.BindEnv("http.addr", "VKSHOW_HTTP_ADDR")
	v.BindEnv("stats.interval", "VKSHOW_STATS_INTERVAL")
	v.BindEnv("snapshot.timeout", "VKSHOW_SNAPSHOT_TIMEOUT")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths := []string{
		".",
		filepath.Join(xdg.ConfigHome, "vkshow"),
		"/etc/vkshow",
	}
	for _, path := range configPaths {
		v.AddConfigPath(os.ExpandEnv(path))
	}
	return v
}

// GetSocketAddress returns the unix socket address producers connect to.
// A leading '@' selects the abstract namespace.
func GetSocketAddress() string {
	return v.GetString("socket.address")
}

// GetPollInterval returns how long the receiver waits for socket readiness per tick
func GetPollInterval() time.Duration {
	return v.GetDuration("poll.interval")
}

// GetHTTPAddr returns the preview server listen address; empty disables it
func GetHTTPAddr() string {
	return v.GetString("http.addr")
}

// GetStatsInterval returns the export rate reporting interval
func GetStatsInterval() time.Duration {
	return v.GetDuration("stats.interval")
}

// GetSnapshotTimeout returns how long a snapshot request waits for a frame
func GetSnapshotTimeout() time.Duration {
	return v.GetDuration("snapshot.timeout")
}

// ConfigFile returns the config file in use, if any.
func ConfigFile() string {
	return v.ConfigFileUsed()
}
