// Package config provides configuration management for the Pitchmark Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// Default values
	DefaultPort     = 8788
	DefaultLogLevel = "info"
	DefaultDataDir  = ".pitchmark"

	// Environment variable names
	EnvPort           = "PITCHMARK_PORT"
	EnvLogLevel       = "PITCHMARK_LOG_LEVEL"
	EnvDataDir        = "PITCHMARK_DATA_DIR"
	EnvRemoteURL      = "PITCHMARK_REMOTE_URL"
	EnvRemoteTokenURL = "PITCHMARK_REMOTE_TOKEN_URL"
	EnvCollection     = "PITCHMARK_COLLECTION"
	EnvHeadless       = "PITCHMARK_HEADLESS"

	// Database filename
	DBFilename = "pitchmark.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	RemoteURL() string
	RemoteTokenURL() string
	CollectionPath() string
	Headless() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port           int
	logLevel       string
	dataDir        string
	remoteURL      string
	remoteTokenURL string
	collectionPath string
	headless       bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.remoteURL = os.Getenv(EnvRemoteURL)
	cfg.remoteTokenURL = os.Getenv(EnvRemoteTokenURL)
	cfg.collectionPath = os.Getenv(EnvCollection)

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// RemoteURL returns the marker-service base URL; empty means offline mode.
func (c *EnvConfig) RemoteURL() string {
	return c.remoteURL
}

// RemoteTokenURL returns the attestation token endpoint.
func (c *EnvConfig) RemoteTokenURL() string {
	return c.remoteTokenURL
}

// CollectionPath returns the path of a collection override file; empty means
// the bundled default collection.
func (c *EnvConfig) CollectionPath() string {
	return c.collectionPath
}

// Headless reports whether the tray UI should be skipped.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
