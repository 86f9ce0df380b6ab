package main

import (
	"fmt"
	"io"
	"log/slog"

	flag "github.com/spf13/pflag"

	pdfmulti "github.com/alnah/go-pdfmulti"
	"github.com/alnah/go-pdfmulti/internal/config"
	"github.com/alnah/go-pdfmulti/internal/logging"
)

// settings is the resolved configuration of one command run.
type settings struct {
	cfg    *config.Config
	logger *slog.Logger
}

// resolveSettings merges defaults < config file < PDFMULTI_* env < flags.
// Only flags the user actually set override lower layers.
func resolveSettings(fs *flag.FlagSet, common *commonFlags, render *renderFlags, output *outputFlags, serve *serveFlags, stderr io.Writer) (*settings, error) {
	env := loadEnvConfig()
	warnUnknownEnvVars(stderr)

	cfg := config.DefaultConfig()
	configPath := common.config
	if configPath == "" {
		configPath = env.ConfigPath
	}
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvConfig(env, cfg)
	applyFlags(fs, cfg, common, render, output, serve)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, common, stderr)
	if err != nil {
		return nil, err
	}
	return &settings{cfg: cfg, logger: logger}, nil
}

// applyFlags copies explicitly set flags over cfg. Any group may be nil when
// the command does not register it.
func applyFlags(fs *flag.FlagSet, cfg *config.Config, common *commonFlags, render *renderFlags, output *outputFlags, serve *serveFlags) {
	changed := func(name string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed
	}

	if common != nil && changed("log-format") {
		cfg.Log.Format = common.logFormat
	}
	if render != nil {
		if changed("timeout") {
			cfg.Render.Timeout = render.timeout
		}
		if changed("asset-timeout") {
			cfg.Render.AssetTimeout = render.assetTimeout
		}
		if changed("browser-bin") {
			cfg.Render.BrowserBin = render.browserBin
		}
		if changed("workers") {
			cfg.Render.Workers = render.workers
		}
	}
	if output != nil {
		if changed("output") {
			cfg.Output.Dir = output.dir
		}
		if changed("gcs-bucket") {
			cfg.Storage.GCSBucket = output.gcsBucket
		}
		if changed("gcs-prefix") {
			cfg.Storage.GCSPrefix = output.gcsPrefix
		}
	}
	if serve != nil {
		if changed("addr") {
			cfg.Server.Addr = serve.addr
		}
		if changed("redis-addr") {
			cfg.Storage.RedisAddr = serve.redisAddr
		}
		if changed("content-ttl") {
			cfg.Server.ContentTTL = serve.contentTTL
		}
		if changed("single-flight") {
			cfg.Server.SingleFlight = serve.singleFlight
		}
	}
}

// newLogger builds the stderr logger. --verbose forces debug and --quiet
// forces error, whatever the configured level.
func newLogger(cfg *config.Config, common *commonFlags, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidValue, err)
	}
	switch {
	case common.verbose:
		level = slog.LevelDebug
	case common.quiet:
		level = slog.LevelError
	}
	return logging.New(w, level, cfg.Log.Format), nil
}

// converterOptions turns the render section into Converter options.
func converterOptions(cfg *config.Config, logger *slog.Logger) []pdfmulti.Option {
	opts := []pdfmulti.Option{pdfmulti.WithLogger(logger)}

	// Validate already rejected malformed durations
	if d, _ := cfg.RenderTimeout(); d > 0 {
		opts = append(opts, pdfmulti.WithTimeout(d))
	}
	if d, _ := cfg.AssetTimeout(); d > 0 {
		opts = append(opts, pdfmulti.WithAssetTimeout(d))
	}
	if cfg.Render.BrowserBin != "" {
		opts = append(opts, pdfmulti.WithBrowserBin(cfg.Render.BrowserBin))
	}
	return opts
}
