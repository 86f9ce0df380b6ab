package pdfmulti

import "strings"

// legacyBreakClass marks an explicit page break in legacy content.
const legacyBreakClass = "html2pdf__page-break"

// paginationRules holds the CSS emitted for each pagination rule.
var paginationRules = map[PageBreakMode]string{
	PageBreakAvoidAll: `
/* Pagination: avoid breaking inside non-breakable elements */
img, svg, figure, table, tr, pre, blockquote,
h1, h2, h3, h4, h5, h6,
.avoid-break, [data-avoid-break] {
  break-inside: avoid;
  page-break-inside: avoid;
}
h1, h2, h3, h4, h5, h6 {
  break-after: avoid;
  page-break-after: avoid;
}
`,
	PageBreakCSS: `
/* Pagination: explicit break hints in styling */
.page-break-before, [data-page-break="before"] {
  break-before: page;
  page-break-before: always;
}
.page-break-after, [data-page-break="after"] {
  break-after: page;
  page-break-after: always;
}
`,
	PageBreakLegacy: `
/* Pagination: legacy break markers */
.` + legacyBreakClass + ` {
  display: block;
  height: 0;
  break-after: page;
  page-break-after: always;
}
`,
}

// buildPaginationCSS generates the print CSS for the given rules, lowest
// priority first. Write order only settles ties between selectors of equal
// specificity. The explicit break rules use class and attribute selectors,
// so they outrank the heading element selectors of avoid-all: a marked
// heading still breaks after itself.
func buildPaginationCSS(modes [3]PageBreakMode) string {
	var buf strings.Builder

	buf.WriteString(`
html, body {
  -webkit-print-color-adjust: exact;
  print-color-adjust: exact;
}
`)

	for i := len(modes) - 1; i >= 0; i-- {
		buf.WriteString(paginationRules[modes[i]])
	}

	return buf.String()
}
