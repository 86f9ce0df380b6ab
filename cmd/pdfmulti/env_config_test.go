package main

// Notes:
// - Tests use t.Setenv() which prevents t.Parallel().
// - applyEnvConfig: env values override the config file; unset ones keep it.

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alnah/go-pdfmulti/internal/config"
)

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("PDFMULTI_CONFIG", "/etc/pdfmulti.yaml")
	t.Setenv("PDFMULTI_TIMEOUT", "2m")
	t.Setenv("PDFMULTI_ASSET_TIMEOUT", "5s")
	t.Setenv("PDFMULTI_OUTPUT_DIR", "/out")
	t.Setenv("PDFMULTI_WORKERS", "3")
	t.Setenv("PDFMULTI_REDIS_ADDR", "redis:6379")
	t.Setenv("PDFMULTI_GCS_BUCKET", "reports")

	env := loadEnvConfig()

	checks := []struct {
		field, got, want string
	}{
		{"ConfigPath", env.ConfigPath, "/etc/pdfmulti.yaml"},
		{"Timeout", env.Timeout, "2m"},
		{"AssetTimeout", env.AssetTimeout, "5s"},
		{"OutputDir", env.OutputDir, "/out"},
		{"RedisAddr", env.RedisAddr, "redis:6379"},
		{"GCSBucket", env.GCSBucket, "reports"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if env.Workers != 3 {
		t.Errorf("Workers = %d, want 3", env.Workers)
	}
}

func TestLoadEnvConfig_InvalidWorkersIgnored(t *testing.T) {
	for _, v := range []string{"abc", "-2", "0"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("PDFMULTI_WORKERS", v)
			if got := loadEnvConfig().Workers; got != 0 {
				t.Errorf("Workers = %d, want 0", got)
			}
		})
	}
}

func TestWarnUnknownEnvVars(t *testing.T) {
	t.Setenv("PDFMULTI_TIMOUT", "30s")
	t.Setenv("PDFMULTI_TIMEOUT", "30s")

	var buf bytes.Buffer
	warnUnknownEnvVars(&buf)

	out := buf.String()
	if !strings.Contains(out, "PDFMULTI_TIMOUT") {
		t.Errorf("missing warning for typo, got %q", out)
	}
	if strings.Contains(out, "PDFMULTI_TIMEOUT ") {
		t.Errorf("known variable reported: %q", out)
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Render.Timeout = "45s"
	cfg.Output.Dir = "/from-file"

	applyEnvConfig(&envConfig{
		Timeout:   "1m",
		Workers:   2,
		LogFormat: "json",
	}, cfg)

	if cfg.Render.Timeout != "1m" {
		t.Errorf("Render.Timeout = %q, want env value 1m", cfg.Render.Timeout)
	}
	if cfg.Output.Dir != "/from-file" {
		t.Errorf("Output.Dir = %q, unset env should keep file value", cfg.Output.Dir)
	}
	if cfg.Render.Workers != 2 {
		t.Errorf("Render.Workers = %d, want 2", cfg.Render.Workers)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want default", cfg.Server.Addr)
	}
}
