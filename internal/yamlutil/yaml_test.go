package yamlutil_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/alnah/go-pdfmulti/internal/yamlutil"
)

type renderSection struct {
	Timeout string `yaml:"timeout"`
	Workers int    `yaml:"workers"`
}

type testConfig struct {
	Render renderSection `yaml:"render"`
}

func TestUnmarshalStrict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		dest    any
		wantErr error
	}{
		{
			name: "known fields",
			data: []byte("render:\n  timeout: 30s\n  workers: 2\n"),
			dest: &testConfig{},
		},
		{
			name:    "empty input",
			data:    nil,
			dest:    &testConfig{},
			wantErr: yamlutil.ErrEmptyInput,
		},
		{
			name:    "nil destination",
			data:    []byte("render: {}"),
			dest:    nil,
			wantErr: yamlutil.ErrNilDestination,
		},
		{
			name:    "too large",
			data:    []byte("# " + strings.Repeat("x", yamlutil.MaxInputSize)),
			dest:    &testConfig{},
			wantErr: yamlutil.ErrInputTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := yamlutil.UnmarshalStrict(tt.data, tt.dest)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("UnmarshalStrict() error = %v", err)
				}
				cfg := tt.dest.(*testConfig)
				if cfg.Render.Timeout != "30s" || cfg.Render.Workers != 2 {
					t.Errorf("decoded = %+v", cfg.Render)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("UnmarshalStrict() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnmarshalStrict_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	var cfg testConfig
	err := yamlutil.UnmarshalStrict([]byte("render:\n  paper: letter\n"), &cfg)
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
	if !strings.HasPrefix(err.Error(), "yamlutil:") {
		t.Errorf("error %q lacks package prefix", err)
	}
}

func TestUnmarshalStrict_SyntaxError(t *testing.T) {
	t.Parallel()

	var cfg testConfig
	if err := yamlutil.UnmarshalStrict([]byte("render: [\n"), &cfg); err == nil {
		t.Error("expected syntax error, got nil")
	}
}
