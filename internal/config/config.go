// Package config contains a centralized structure for reposcribe's
// configuration, following the mapstructure-tagged-struct-plus-viper
// pattern used throughout the server this project started from.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the top-level configuration structure for the reposcribed
// server. The reposcribe CLI reads its flags directly and does not use it.
type Config struct {
	HTTPServer    HTTPServerConfig `mapstructure:"http_server"`
	WSServer      WSServerConfig   `mapstructure:"ws_server"`
	LoggingConfig LoggingConfig    `mapstructure:"logging"`
	Cache         CacheConfig      `mapstructure:"cache"`
	Clone         CloneConfig      `mapstructure:"clone"`
}

// HTTPServerConfig is the configuration for reposcribed's HTTP listener.
type HTTPServerConfig struct {
	Host string `mapstructure:"host" default:"127.0.0.1"`
	Port int    `mapstructure:"port" default:"42069"`
}

// GetAddress returns the address to bind to.
func (s *HTTPServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WSServerConfig is the configuration for reposcribed's WebSocket
// streaming listener.
type WSServerConfig struct {
	Host string `mapstructure:"host" default:"127.0.0.1"`
	Port int    `mapstructure:"port" default:"42070"`
}

// GetAddress returns the address to bind to.
func (s *WSServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CacheConfig configures the artifact, index, and diff caches
// (spec.md §4.6).
type CacheConfig struct {
	Dir              string `mapstructure:"dir"`
	ArtifactMaxBytes int64  `mapstructure:"artifact_max_bytes" default:"536870912"`
	IndexMaxBytes    int64  `mapstructure:"index_max_bytes" default:"5368709120"`
	IndexMaxAgeHours int    `mapstructure:"index_max_age_hours" default:"168"`
	DiffCapacity     int    `mapstructure:"diff_capacity" default:"256"`
}

// CloneConfig configures the Clone Driver (spec.md §4.3).
type CloneConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"300"`
}

// DefaultConfigForTest returns a configuration with all struct
// defaults set, and no other changes.
func DefaultConfigForTest() *Config {
	v := viper.New()
	SetViperDefaults(v)
	c, err := ReadConfigFromViper[Config](v)
	if err != nil {
		panic(fmt.Sprintf("failed to read default config: %v", err))
	}
	return c
}

// SetViperDefaults sets the default values for the configuration to
// be picked up by viper, including REPOSCRIBE_-prefixed env overrides.
// The listener ports also honor the unprefixed HTTP_PORT and WS_PORT.
func SetViperDefaults(v *viper.Viper) {
	v.SetEnvPrefix("reposcribe")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	SetViperStructDefaults(v, "", Config{})
	_ = v.BindEnv("http_server.port", "REPOSCRIBE_HTTP_SERVER_PORT", "HTTP_PORT")
	_ = v.BindEnv("ws_server.port", "REPOSCRIBE_WS_SERVER_PORT", "WS_PORT")
}

// RegisterServerFlags registers the cobra/pflag surface for
// reposcribed's serve command.
func RegisterServerFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := BindConfigFlag(v, flags, "http_server.host", "http-host", "127.0.0.1",
		"Host to bind the HTTP server to", flags.String); err != nil {
		return err
	}
	if err := BindConfigFlag(v, flags, "http_server.port", "http-port", 42069,
		"Port to bind the HTTP server to", flags.Int); err != nil {
		return err
	}
	if err := BindConfigFlag(v, flags, "ws_server.host", "ws-host", "127.0.0.1",
		"Host to bind the WebSocket server to", flags.String); err != nil {
		return err
	}
	return BindConfigFlag(v, flags, "ws_server.port", "ws-port", 42070,
		"Port to bind the WebSocket server to", flags.Int)
}
