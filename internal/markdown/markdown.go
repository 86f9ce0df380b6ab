// Package markdown turns Markdown sources into HTML content fragments that
// the conversion pipeline accepts like any other content.
package markdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// ErrConversion indicates Markdown conversion failed.
var ErrConversion = errors.New("markdown conversion failed")

// highlightStyle is the chroma style used for fenced code blocks.
const highlightStyle = "github"

// Converter converts Markdown to HTML fragments using goldmark (pure Go).
// It is safe for concurrent use.
type Converter struct {
	md  goldmark.Markdown
	css string
}

// New creates a Converter with GFM extensions and class-based syntax
// highlighting. The highlighting stylesheet is rendered once.
func New() (*Converter, error) {
	formatOpts := []chromahtml.Option{chromahtml.WithClasses(true)}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithStyle(highlightStyle),
				highlighting.WithFormatOptions(formatOpts...),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithXHTML(),
			// Raw HTML stays escaped; images and page-break markers use Markdown syntax
		),
	)

	var css bytes.Buffer
	if err := chromahtml.New(formatOpts...).WriteCSS(&css, styles.Get(highlightStyle)); err != nil {
		return nil, fmt.Errorf("%w: writing highlight CSS: %v", ErrConversion, err)
	}

	return &Converter{md: md, css: css.String()}, nil
}

// ToHTML converts Markdown content to an HTML fragment titled title.
// Goldmark has no context support, so conversion runs in a goroutine and
// the call returns early when ctx is done.
func (c *Converter) ToHTML(ctx context.Context, content, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		var body bytes.Buffer
		if err := c.md.Convert([]byte(content), &body); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrConversion, err)}
			return
		}

		var out strings.Builder
		if title != "" {
			out.WriteString("<title>" + html.EscapeString(title) + "</title>\n")
		}
		out.WriteString("<style>\n" + c.css + "</style>\n")
		out.Write(body.Bytes())
		done <- result{html: out.String()}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.html, r.err
	}
}

// IsMarkdown reports whether path has a Markdown extension.
func IsMarkdown(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}
