// Package config handles repository and global configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents repository configuration stored in .rtk/config.json.
// It carries the default ingestion limits; command-line flags override.
type Config struct {
	MaxDepth          int     `json:"max_depth"`
	MaxNodes          int     `json:"max_nodes"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Concurrency       int     `json:"concurrency"`
	PerPaperLimit     int     `json:"per_paper_limit"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	IncludeCitations  bool    `json:"include_citations"`
}

const (
	RTKDir     = ".rtk"
	ConfigFile = "config.json"
	DBFile     = "graph.db"
)

// Default ingestion limits. The request rate matches the public
// unauthenticated Semantic Scholar limit.
const (
	DefaultMaxDepth          = 1
	DefaultMaxNodes          = 200
	DefaultRequestsPerSecond = 1.0
	DefaultConcurrency       = 4
	DefaultPerPaperLimit     = 100
	DefaultTimeoutSeconds    = 600
)

// DefaultConfig returns a config with the default ingestion limits.
func DefaultConfig() *Config {
	return &Config{
		MaxDepth:          DefaultMaxDepth,
		MaxNodes:          DefaultMaxNodes,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Concurrency:       DefaultConcurrency,
		PerPaperLimit:     DefaultPerPaperLimit,
		TimeoutSeconds:    DefaultTimeoutSeconds,
		IncludeCitations:  true,
	}
}

// Timeout returns the run timeout as a duration (0 = no timeout).
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RTKPath returns the path to the .rtk directory from a root path.
func RTKPath(root string) string {
	return filepath.Join(root, RTKDir)
}

// ConfigPath returns the path to config.json from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, RTKDir, ConfigFile)
}

// DBPath returns the path to graph.db from a root path.
func DBPath(root string) string {
	return filepath.Join(root, RTKDir, DBFile)
}

// IsRepository checks if the given path contains an rtk repository.
func IsRepository(root string) bool {
	info, err := os.Stat(RTKPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find an rtk repository.
// Returns the repository root path or an error if not found.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in an rtk repository (no .rtk directory found)")
		}
		abs = parent
	}
}

// Load reads configuration from the repository at the given root.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes configuration to the repository at the given root.
func Save(root string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(root), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Init creates the .rtk directory and a default config in root.
// Fails if the repository already exists.
func Init(root string) (*Config, error) {
	if IsRepository(root) {
		return nil, fmt.Errorf("directory already contains an rtk repository")
	}
	if err := os.MkdirAll(RTKPath(root), 0755); err != nil {
		return nil, fmt.Errorf("creating %s directory: %w", RTKDir, err)
	}
	cfg := DefaultConfig()
	if err := Save(root, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
