// Package config loads pdbstream settings from a YAML or JSONC file.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/jtang613/pdbstream/pkg/pdb/memstream"
)

// Config controls how PDB images are buffered and exported.
type Config struct {
	// ChunkSize is the memory stream chunk size in bytes.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// MaxSize caps the size of a memory stream in bytes. Zero is unlimited.
	MaxSize int64 `yaml:"max_size" json:"max_size"`
	// Compression applied to exported artifacts: none, zstd, lz4 or xz.
	Compression string `yaml:"compression" json:"compression"`
	// BandwidthLimit in bytes per second for exports. Zero is unlimited.
	BandwidthLimit int64 `yaml:"bandwidth_limit" json:"bandwidth_limit"`
	// Digest adds a BLAKE3 digest of the exported content to the manifest.
	Digest bool `yaml:"digest" json:"digest"`
	// LogLevel is a logrus level name.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ChunkSize:   memstream.DefaultChunkSize,
		Compression: "none",
		LogLevel:    "info",
	}
}

// Load reads path and overlays it on Default. Files ending in .json or
// .jsonc are parsed as JSON with comments, anything else as YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate checks value ranges and names.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.MaxSize < 0 {
		return errors.Errorf("max_size must not be negative, got %d", c.MaxSize)
	}
	if c.BandwidthLimit < 0 {
		return errors.Errorf("bandwidth_limit must not be negative, got %d", c.BandwidthLimit)
	}
	switch c.Compression {
	case "", "none", "zstd", "lz4", "xz":
	default:
		return errors.Errorf("unknown compression %q", c.Compression)
	}
	return nil
}

// NewStream creates an empty memory stream sized by the configuration.
func (c Config) NewStream() (*memstream.Stream, error) {
	s, err := memstream.NewWithChunkSize(c.ChunkSize)
	if err != nil {
		return nil, err
	}
	s.SetLimit(c.MaxSize)
	return s, nil
}
