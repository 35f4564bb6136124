package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Server contains HTTP listener configuration.
type Server struct {
	Port                int `toml:"port"`
	ReadTimeoutSeconds  int `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int `toml:"write_timeout_seconds"`
	MaxRequestSize      int `toml:"max_request_size"`
	Concurrency         int `toml:"concurrency"`
}

// MatcherDefaults contains the matcher configuration applied to requests that
// do not carry their own thresholds and labels.
type MatcherDefaults struct {
	Thresholds             []float64 `toml:"thresholds"`
	Labels                 []int     `toml:"labels"`
	AllowLowQualityMatches bool      `toml:"allow_low_quality_matches"`
	OptimizedReducer       bool      `toml:"optimized_reducer"`
	WarmUp                 bool      `toml:"warm_up"`
}

// FileConfig is the on-disk server configuration.
type FileConfig struct {
	Server  Server          `toml:"server"`
	Matcher MatcherDefaults `toml:"matcher"`
}

// DefaultFileConfig returns the built-in configuration used when no config
// file is given.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Server: Server{
			Port:                8080,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 30,
			MaxRequestSize:      10 * 1024 * 1024, // 10MB
			Concurrency:         0,                // 0 means use GOMAXPROCS
		},
		Matcher: MatcherDefaults{
			Thresholds:             []float64{0.3, 0.7},
			Labels:                 []int{0, -1, 1},
			AllowLowQualityMatches: true,
			OptimizedReducer:       true,
			WarmUp:                 true,
		},
	}
}

// LoadFileConfig reads a TOML configuration file, layering it over the
// built-in defaults. A missing file is an error; an empty path returns the
// defaults unchanged.
func LoadFileConfig(path string) (FileConfig, error) {
	cfg := DefaultFileConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config file %s does not exist", path)
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c FileConfig) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Server.MaxRequestSize <= 0 {
		return fmt.Errorf("server.max_request_size must be positive, got %d", c.Server.MaxRequestSize)
	}
	if len(c.Matcher.Thresholds) == 0 {
		return errors.New("matcher.thresholds must not be empty")
	}
	if len(c.Matcher.Labels) != len(c.Matcher.Thresholds)+1 {
		return fmt.Errorf("matcher.labels needs one label per interval: %d labels for %d thresholds",
			len(c.Matcher.Labels), len(c.Matcher.Thresholds))
	}
	return nil
}

// ReadTimeout returns the read timeout as a duration.
func (s Server) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write timeout as a duration.
func (s Server) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}
