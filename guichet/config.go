package guichet

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config configures the guichet service.
type Config struct {
	// UploadsDir is where completed documents are archived.
	UploadsDir string `yaml:"uploads_dir"`
	// ArchiveDB is the SQLite database path for generation records.
	ArchiveDB string `yaml:"archive_db"`
	// SessionTTL is the sliding lifetime of a fill session.
	SessionTTL time.Duration `yaml:"session_ttl"`
	// MaxSessions caps the number of concurrent sessions.
	MaxSessions int `yaml:"max_sessions"`
	// MaxUploadBytes caps the size of an uploaded template.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

func (c *Config) defaults() {
	if c.UploadsDir == "" {
		c.UploadsDir = "uploads"
	}
	if c.ArchiveDB == "" {
		c.ArchiveDB = "db/archive.db"
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 256
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 16 << 20 // 16 MB
	}
}

func defaultConfig() *Config {
	c := &Config{}
	c.defaults()
	return c
}

// LoadConfigFile reads a YAML config file. Missing fields keep their
// defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("guichet: read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("guichet: parse config: %w", err)
	}
	cfg.defaults()
	return cfg, nil
}
