package markdown

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newConverter(t *testing.T) *Converter {
	t.Helper()
	c, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestToHTML(t *testing.T) {
	t.Parallel()

	c := newConverter(t)

	tests := []struct {
		name     string
		content  string
		title    string
		contains []string
		excludes []string
	}{
		{
			name:     "title and heading",
			content:  "# Hello\n\nWorld",
			title:    "Greeting",
			contains: []string{"<title>Greeting</title>", `<h1 id="hello">Hello</h1>`, "<p>World</p>"},
		},
		{
			name:     "title escaped",
			content:  "x",
			title:    "R&D <draft>",
			contains: []string{"<title>R&amp;D &lt;draft&gt;</title>"},
		},
		{
			name:     "no title",
			content:  "x",
			excludes: []string{"<title>"},
		},
		{
			name:     "gfm table",
			content:  "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:     "image",
			content:  "![logo](img/logo.png)",
			contains: []string{`<img src="img/logo.png" alt="logo" />`},
		},
		{
			name:     "highlighted code uses classes",
			content:  "```go\nfunc main() {}\n```",
			contains: []string{`class="chroma"`, ".chroma"},
		},
		{
			name:     "raw html escaped",
			content:  "<script>alert(1)</script>",
			excludes: []string{"<script>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := c.ToHTML(context.Background(), tt.content, tt.title)
			if err != nil {
				t.Fatalf("ToHTML() error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("output contains %q", bad)
				}
			}
		})
	}
}

func TestToHTML_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newConverter(t).ToHTML(ctx, "# x", "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ToHTML() error = %v, want context.Canceled", err)
	}
}

func TestIsMarkdown(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]bool{
		"README.md":        true,
		"notes.MARKDOWN":   true,
		"page.html":        false,
		"archive.md.gz":    false,
		"dir.md/index.htm": false,
	} {
		if got := IsMarkdown(path); got != want {
			t.Errorf("IsMarkdown(%q) = %v, want %v", path, got, want)
		}
	}
}
