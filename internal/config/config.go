// Package config loads the YAML configuration of the pdfmulti CLI and server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-pdfmulti/internal/fileutil"
	"github.com/alnah/go-pdfmulti/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxPathLength     = 4096
	MaxAddrLength     = 255
	MaxBucketLength   = 222 // GCS limit with dots
	MaxPrefixLength   = 1024
	MaxDurationLength = 20
	MaxLevelLength    = 10
)

// MaxWorkers caps the configured pool size.
const MaxWorkers = 64

// configDirName is the directory searched under os.UserConfigDir.
const configDirName = "go-pdfmulti"

// Config holds all configuration for conversion and serving.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	Render  RenderConfig  `yaml:"render"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// OutputConfig defines where converted files go.
type OutputConfig struct {
	Dir string `yaml:"dir"` // Empty = next to the source file
}

// RenderConfig defines render engine options.
type RenderConfig struct {
	Timeout      string `yaml:"timeout"`      // Page load timeout, e.g. "30s"
	AssetTimeout string `yaml:"assetTimeout"` // Empty = wait indefinitely
	BrowserBin   string `yaml:"browserBin"`   // Empty = ROD_BROWSER_BIN or auto-download
	Workers      int    `yaml:"workers"`      // 0 = auto
}

// ServerConfig defines the HTTP host options.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	ContentTTL   string `yaml:"contentTTL"` // Empty = content never expires
	SingleFlight bool   `yaml:"singleFlight"`
}

// StorageConfig defines content and output backends.
type StorageConfig struct {
	RedisAddr string `yaml:"redisAddr"` // Empty = in-memory content store
	GCSBucket string `yaml:"gcsBucket"` // Empty = local files
	GCSPrefix string `yaml:"gcsPrefix"`
}

// LogConfig defines diagnostic output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Render: RenderConfig{Timeout: "30s"},
		Server: ServerConfig{Addr: ":8080", SingleFlight: true},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks field lengths and value ranges.
// Called automatically by LoadConfig.
func (c *Config) Validate() error {
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"output.dir", c.Output.Dir, MaxPathLength},
		{"render.timeout", c.Render.Timeout, MaxDurationLength},
		{"render.assetTimeout", c.Render.AssetTimeout, MaxDurationLength},
		{"render.browserBin", c.Render.BrowserBin, MaxPathLength},
		{"server.addr", c.Server.Addr, MaxAddrLength},
		{"server.contentTTL", c.Server.ContentTTL, MaxDurationLength},
		{"storage.redisAddr", c.Storage.RedisAddr, MaxAddrLength},
		{"storage.gcsBucket", c.Storage.GCSBucket, MaxBucketLength},
		{"storage.gcsPrefix", c.Storage.GCSPrefix, MaxPrefixLength},
		{"log.level", c.Log.Level, MaxLevelLength},
		{"log.format", c.Log.Format, MaxLevelLength},
	}
	for _, f := range fields {
		if err := validateFieldLength(f.name, f.value, f.max); err != nil {
			return err
		}
	}

	if _, err := c.RenderTimeout(); err != nil {
		return err
	}
	if _, err := c.AssetTimeout(); err != nil {
		return err
	}
	if _, err := c.ContentTTL(); err != nil {
		return err
	}

	if c.Render.Workers < 0 || c.Render.Workers > MaxWorkers {
		return fmt.Errorf("%w: render.workers must be between 0 and %d, got %d", ErrInvalidValue, MaxWorkers, c.Render.Workers)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q (must be debug, info, warn, or error)", ErrInvalidValue, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (must be text or json)", ErrInvalidValue, c.Log.Format)
	}

	return nil
}

// RenderTimeout returns render.timeout, or 0 when unset.
func (c *Config) RenderTimeout() (time.Duration, error) {
	return parseDuration("render.timeout", c.Render.Timeout)
}

// AssetTimeout returns render.assetTimeout, or 0 (no limit) when unset.
func (c *Config) AssetTimeout() (time.Duration, error) {
	return parseDuration("render.assetTimeout", c.Render.AssetTimeout)
}

// ContentTTL returns server.contentTTL, or 0 (no expiry) when unset.
func (c *Config) ContentTTL() (time.Duration, error) {
	return parseDuration("server.contentTTL", c.Server.ContentTTL)
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidValue, field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s cannot be negative", ErrInvalidValue, field)
	}
	return d, nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// LoadConfig loads configuration from a file path or config name.
// A value containing a path separator is read as a file; otherwise it is
// searched as <name>.yaml or <name>.yml in the current directory, then in
// the user config directory. Missing files are an error (no silent fallback).
// Fields absent from the file keep their DefaultConfig values.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !strings.ContainsAny(nameOrPath, `/\`) {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	var tried []string

	for _, ext := range extensions {
		local := name + ext
		if fileutil.FileExists(local) {
			return local, nil
		}
		tried = append(tried, local)
	}

	if dir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(dir, configDirName, name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			tried = append(tried, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
