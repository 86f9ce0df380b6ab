package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alnah/go-pdfmulti/internal/config"
)

const envPrefix = "PDFMULTI_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath   string // PDFMULTI_CONFIG: config file name or path
	Timeout      string // PDFMULTI_TIMEOUT: page load timeout
	AssetTimeout string // PDFMULTI_ASSET_TIMEOUT: image load timeout
	OutputDir    string // PDFMULTI_OUTPUT_DIR: default output directory
	Workers      int    // PDFMULTI_WORKERS: parallel workers
	Addr         string // PDFMULTI_ADDR: serve listen address
	ContentTTL   string // PDFMULTI_CONTENT_TTL: session content expiry
	RedisAddr    string // PDFMULTI_REDIS_ADDR: shared content store
	GCSBucket    string // PDFMULTI_GCS_BUCKET: upload bucket
	GCSPrefix    string // PDFMULTI_GCS_PREFIX: object name prefix
	LogLevel     string // PDFMULTI_LOG_LEVEL: debug, info, warn, error
	LogFormat    string // PDFMULTI_LOG_FORMAT: text, json
}

// knownEnvVars lists valid PDFMULTI_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"PDFMULTI_CONFIG":        true,
	"PDFMULTI_TIMEOUT":       true,
	"PDFMULTI_ASSET_TIMEOUT": true,
	"PDFMULTI_OUTPUT_DIR":    true,
	"PDFMULTI_WORKERS":       true,
	"PDFMULTI_ADDR":          true,
	"PDFMULTI_CONTENT_TTL":   true,
	"PDFMULTI_REDIS_ADDR":    true,
	"PDFMULTI_GCS_BUCKET":    true,
	"PDFMULTI_GCS_PREFIX":    true,
	"PDFMULTI_LOG_LEVEL":     true,
	"PDFMULTI_LOG_FORMAT":    true,
	"PDFMULTI_CONTAINER":     true, // read by doctor
}

// loadEnvConfig reads configuration from environment variables.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath:   os.Getenv("PDFMULTI_CONFIG"),
		Timeout:      os.Getenv("PDFMULTI_TIMEOUT"),
		AssetTimeout: os.Getenv("PDFMULTI_ASSET_TIMEOUT"),
		OutputDir:    os.Getenv("PDFMULTI_OUTPUT_DIR"),
		Addr:         os.Getenv("PDFMULTI_ADDR"),
		ContentTTL:   os.Getenv("PDFMULTI_CONTENT_TTL"),
		RedisAddr:    os.Getenv("PDFMULTI_REDIS_ADDR"),
		GCSBucket:    os.Getenv("PDFMULTI_GCS_BUCKET"),
		GCSPrefix:    os.Getenv("PDFMULTI_GCS_PREFIX"),
		LogLevel:     os.Getenv("PDFMULTI_LOG_LEVEL"),
		LogFormat:    os.Getenv("PDFMULTI_LOG_FORMAT"),
	}

	// Invalid or non-positive values are ignored
	if workers := os.Getenv("PDFMULTI_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Workers = w
		}
	}

	return cfg
}

// warnUnknownEnvVars writes a warning for each unrecognized PDFMULTI_* variable.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, envPrefix) {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig copies every set environment value over cfg.
// Precedence: CLI flags > env vars > config file > defaults
// (CLI flags are applied afterwards by applyFlags).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&cfg.Render.Timeout, env.Timeout)
	set(&cfg.Render.AssetTimeout, env.AssetTimeout)
	set(&cfg.Output.Dir, env.OutputDir)
	set(&cfg.Server.Addr, env.Addr)
	set(&cfg.Server.ContentTTL, env.ContentTTL)
	set(&cfg.Storage.RedisAddr, env.RedisAddr)
	set(&cfg.Storage.GCSBucket, env.GCSBucket)
	set(&cfg.Storage.GCSPrefix, env.GCSPrefix)
	set(&cfg.Log.Level, env.LogLevel)
	set(&cfg.Log.Format, env.LogFormat)

	if env.Workers > 0 {
		cfg.Render.Workers = env.Workers
	}
}
