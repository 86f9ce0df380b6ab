package pdfmulti

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// documentFileName is the name of the materialized document inside a
// staged tree's scratch directory.
const documentFileName = "index.html"

// contentStager abstracts staging to allow counting and failure injection in tests.
type contentStager interface {
	Stage(content, sourceDir string) (*StagedTree, error)
}

// Asset is one raster image node of a staged tree.
type Asset struct {
	Src    string
	Loaded bool

	node    *html.Node
	data    []byte
	loadErr error
}

// StagedTree is a detached, style-neutral copy of a content document.
// It is owned by a single conversion and must be released exactly once.
type StagedTree struct {
	root      *html.Node
	assets    []*Asset
	sourceDir string
	dir       string
	released  atomic.Bool
}

// Assets returns the asset set captured when staging completed.
func (t *StagedTree) Assets() []*Asset {
	return t.assets
}

// Dir returns the tree's private scratch directory.
func (t *StagedTree) Dir() string {
	return t.dir
}

// Released reports whether Release has been called.
func (t *StagedTree) Released() bool {
	return t.released.Load()
}

// Release drops the tree and removes its scratch directory.
// A second call returns ErrTreeReleased and releases nothing.
func (t *StagedTree) Release() error {
	if !t.released.CompareAndSwap(false, true) {
		return ErrTreeReleased
	}
	t.root = nil
	t.assets = nil
	if t.dir == "" {
		return nil
	}
	return os.RemoveAll(t.dir)
}

// htmlStager materializes content with golang.org/x/net/html.
type htmlStager struct {
	tempDir string // parent of scratch directories ("" = os.TempDir)
}

// Stage parses content into a detached tree under an unstyled container.
// The parser is tolerant: malformed markup yields a best-effort tree.
func (s *htmlStager) Stage(content, sourceDir string) (*StagedTree, error) {
	container := newContainer()

	// Parse in a <div> context, the same way innerHTML assignment would
	context := &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	nodes, err := html.ParseFragment(strings.NewReader(content), context)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStage, err)
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}

	dir, err := os.MkdirTemp(s.tempDir, "pdfmulti-*")
	if err != nil {
		return nil, fmt.Errorf("%w: creating scratch directory: %w", ErrStage, err)
	}

	return &StagedTree{
		root:      container,
		assets:    collectAssets(container),
		sourceDir: sourceDir,
		dir:       dir,
	}, nil
}

// newContainer returns the style-neutral wrapper for staged content.
func newContainer() *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr:     []html.Attribute{{Key: "style", Val: ""}},
	}
}

// collectAssets walks the tree once and returns every <img> node.
// Inline data: images and images without a source are already loaded.
func collectAssets(root *html.Node) []*Asset {
	var assets []*Asset

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			assets = append(assets, newAsset(n))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return assets
}

func newAsset(n *html.Node) *Asset {
	src := strings.TrimSpace(attr(n, "src"))
	a := &Asset{Src: src, node: n}

	switch {
	case src == "":
		// Nothing to load; browsers report such images as complete
		a.Loaded = true
	case isDataURI(src):
		data, err := decodeDataURI(src)
		if err == nil {
			err = verifyImage(data)
		}
		if err != nil {
			a.loadErr = err
		} else {
			a.data = data
			a.Loaded = true
		}
	}

	return a
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// setAttr sets the named attribute, adding it when missing.
func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// documentTemplate wraps staged content in a standalone HTML5 document.
var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>{{.CSS}}</style>
</head>
<body style="margin: 0">
{{.Body}}
</body>
</html>`))

// Document renders the tree as a standalone HTML document for cfg.
// When cfg.UseCORS is set, loaded assets are inlined as data: URIs so the
// render step never fetches them again.
func (t *StagedTree) Document(cfg ConversionConfig) (string, error) {
	if t.Released() {
		return "", ErrTreeReleased
	}

	if cfg.UseCORS {
		if err := t.inlineAssets(cfg.Image); err != nil {
			return "", err
		}
	}

	var body strings.Builder
	if err := html.Render(&body, t.root); err != nil {
		return "", fmt.Errorf("rendering staged tree: %w", err)
	}

	var buf strings.Builder
	err := documentTemplate.Execute(&buf, struct {
		Title string
		CSS   template.CSS
		Body  template.HTML
	}{
		Title: strings.TrimSuffix(cfg.FileName, "."+OutputFormatPDF),
		CSS:   template.CSS(buildPaginationCSS(cfg.PageBreak)), // #nosec G203 -- generated, no user input
		Body:  template.HTML(body.String()),                     // #nosec G203 -- re-rendered by x/net/html
	})
	if err != nil {
		return "", fmt.Errorf("rendering document: %w", err)
	}
	return buf.String(), nil
}

// WriteDocument writes Document(cfg) into the scratch directory and
// returns its path.
func (t *StagedTree) WriteDocument(cfg ConversionConfig) (string, error) {
	doc, err := t.Document(cfg)
	if err != nil {
		return "", err
	}

	path := filepath.Join(t.dir, documentFileName)
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		return "", fmt.Errorf("writing staged document: %w", err)
	}
	return path, nil
}

// inlineAssets replaces the src of every fetched asset with a data: URI.
func (t *StagedTree) inlineAssets(opts ImageOptions) error {
	for _, a := range t.assets {
		if !a.Loaded || a.data == nil {
			continue
		}
		uri, err := encodeDataURI(a.data, opts)
		if err != nil {
			return fmt.Errorf("inlining %q: %w", a.Src, err)
		}
		setAttr(a.node, "src", uri)
	}
	return nil
}
