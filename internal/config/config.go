// Package config provides unified configuration for all tessloc commands.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode represents the command to run.
type Mode string

const (
	ModeFetch  Mode = "fetch"
	ModeWCS    Mode = "wcs"
	ModeServe  Mode = "serve"
	ModeLookup Mode = "lookup"
)

// DefaultTAPURL is the MAST TAP service that lists TESS FFI products.
const DefaultTAPURL = "https://vao.stsci.edu/caomtap/tapservice.aspx"

// Config holds the unified configuration for all tessloc commands.
type Config struct {
	// Mode specifies the command to run: fetch, wcs, serve, lookup
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for all catalog files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration for the query API
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Archive configuration for the external MAST collaborators
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Catalog configuration
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Storage configuration for catalog mirroring
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address for the query API
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// ArchiveConfig holds configuration for the external archive collaborators.
type ArchiveConfig struct {
	// TAPURL is the MAST TAP sync endpoint
	TAPURL string `json:"tap_url" yaml:"tap_url"`

	// RequestTimeout bounds a single archive round-trip
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// MaxHeaderBlocks caps how many 2880-byte FITS blocks the header
	// download will read before giving up on finding the END card
	MaxHeaderBlocks int `json:"max_header_blocks" yaml:"max_header_blocks"`
}

// CatalogConfig holds catalog store configuration.
type CatalogConfig struct {
	// ListingDir is the directory holding per-sector listing files
	ListingDir string `json:"listing_dir" yaml:"listing_dir"`

	// WCSCacheSize bounds the WCS resolution cache (entries). Sized to
	// exceed the total number of sector/camera/ccd triples so eviction
	// stays a safety net.
	WCSCacheSize int `json:"wcs_cache_size" yaml:"wcs_cache_size"`
}

// StorageConfig holds storage configuration for catalog mirroring.
type StorageConfig struct {
	// Type is the storage type: none, local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeServe,
		DataDir: "./data/tessloc",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Archive: ArchiveConfig{
			TAPURL:          DefaultTAPURL,
			RequestTimeout:  5 * time.Minute,
			MaxHeaderBlocks: 20,
		},
		Catalog: CatalogConfig{
			ListingDir:   "",
			WCSCacheSize: 4096,
		},
		Storage: StorageConfig{
			Type: "none",
			Path: "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/tessloc"
	}

	if c.Catalog.ListingDir == "" {
		c.Catalog.ListingDir = filepath.Join(c.DataDir, "catalogs")
	}

	if c.Storage.Type == "local" && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "mirror")
	}
}

// ListingPath returns the path of the FFI listing store for a given sector.
func (c *Config) ListingPath(sector int) string {
	return filepath.Join(c.Catalog.ListingDir, fmt.Sprintf("tess-s%04d-ffi-catalog.db", sector))
}

// WCSCatalogPath returns the path to the WCS catalog database.
func (c *Config) WCSCatalogPath() string {
	return filepath.Join(c.DataDir, "tess-wcs-catalog.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeFetch, ModeWCS, ModeServe, ModeLookup:
		// Valid modes
	default:
		return fmt.Errorf("invalid mode: %s (must be fetch, wcs, serve, or lookup)", c.Mode)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Archive.TAPURL == "" {
		return fmt.Errorf("archive.tap_url is required")
	}

	if c.Archive.MaxHeaderBlocks < 1 {
		return fmt.Errorf("archive.max_header_blocks must be >= 1, got %d", c.Archive.MaxHeaderBlocks)
	}

	if c.Catalog.WCSCacheSize < 1 {
		return fmt.Errorf("catalog.wcs_cache_size must be >= 1, got %d", c.Catalog.WCSCacheSize)
	}

	switch c.Storage.Type {
	case "none", "local", "s3":
		// Valid storage types
	default:
		return fmt.Errorf("invalid storage type: %s (must be none, local, or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	return nil
}

// MirrorEnabled returns true if a mirror backend is configured.
func (c *Config) MirrorEnabled() bool {
	return c.Storage.Type != "none" && c.Storage.Type != ""
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TESSLOC_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TESSLOC_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("TESSLOC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// HTTP configuration
	if v := os.Getenv("TESSLOC_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Archive configuration
	if v := os.Getenv("TESSLOC_TAP_URL"); v != "" {
		cfg.Archive.TAPURL = v
	}
	if v := os.Getenv("TESSLOC_ARCHIVE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Archive.RequestTimeout = d
		}
	}

	// Catalog configuration
	if v := os.Getenv("TESSLOC_WCS_CACHE_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Catalog.WCSCacheSize)
	}

	// Storage configuration
	if v := os.Getenv("TESSLOC_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("TESSLOC_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("TESSLOC_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("TESSLOC_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("TESSLOC_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Catalog.ListingDir,
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
