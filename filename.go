package pdfmulti

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// titlePattern matches the first <title> element on a single line.
var titlePattern = regexp.MustCompile(`(?i)<title>(.*?)</title>`)

// fileNameReplacer strips characters that are not portable in file names.
var fileNameReplacer = strings.NewReplacer(
	"/", "-", `\`, "-", ":", "-", "*", "-", "?", "-",
	`"`, "-", "<", "-", ">", "-", "|", "-",
)

// DeriveFileName returns the output base name for content: the inner text of
// its <title>, or DefaultFileName when the title is absent or empty.
func DeriveFileName(content string) string {
	m := titlePattern.FindStringSubmatch(content)
	if m == nil {
		return DefaultFileName
	}

	name := strings.TrimSpace(html.UnescapeString(m[1]))
	name = norm.NFC.String(name)
	name = fileNameReplacer.Replace(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, ". ")

	if name == "" {
		return DefaultFileName
	}
	return name
}

// DeriveOutput returns the output descriptor for content.
func DeriveOutput(content string) OutputDescriptor {
	return outputFor(DeriveFileName(content))
}

// outputFor returns the descriptor of a PDF with base name name.
func outputFor(name string) OutputDescriptor {
	return OutputDescriptor{
		FileName: name + "." + OutputFormatPDF,
		Format:   OutputFormatPDF,
	}
}
