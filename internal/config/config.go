// Package config loads and persists the tool configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDirName is the per-user directory holding the configuration and
// the database files.
const ConfigDirName = ".dicomcache"

// Config is the flat tool configuration.
type Config struct {
	Version string `json:"version"`

	// CacheDir holds the metadata and tag-cache database files. Empty
	// means the config directory itself.
	CacheDir string `json:"cache_dir,omitempty"`

	// DICOMwebURL is the base URL of a DICOMweb endpoint (QIDO/WADO-RS).
	DICOMwebURL string `json:"dicomweb_url,omitempty"`
	// DICOMwebHeaders are sent with every DICOMweb request
	// (authorization headers, typically).
	DICOMwebHeaders map[string]string `json:"dicomweb_headers,omitempty"`
	// SynchronousFrames makes DICOMweb frame retrieval block on each
	// fetch instead of running in the background.
	SynchronousFrames bool `json:"synchronous_frames,omitempty"`

	// DatastoreID selects an AWS HealthImaging datastore.
	DatastoreID string `json:"datastore_id,omitempty"`
	// AWSRegion is the region the datastore lives in.
	AWSRegion string `json:"aws_region,omitempty"`

	// TagsToPrecache adds tags (GGGG,EEEE) to the tag cache beyond the
	// built-in set.
	TagsToPrecache []string `json:"tags_to_precache,omitempty"`
	// TagsToExcludeFromStorage withholds tag values from the tag cache
	// (a not-stored sentinel is cached instead).
	TagsToExcludeFromStorage []string `json:"tags_to_exclude_from_storage,omitempty"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`
}

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ConfigDirName), nil
}

// LoadConfig reads config.json from the given directory. Returns an
// error when no config exists; callers wanting defaults use
// LoadOrDefault.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault reads config.json from the given directory, or returns a
// default config when none exists.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := LoadConfig(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{Version: "1"}, nil
		}
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes config.json to the given directory, creating it if
// needed.
func SaveConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// DatabaseDir resolves where the database files live for a config rooted
// at dir.
func (c *Config) DatabaseDir(dir string) string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return dir
}
