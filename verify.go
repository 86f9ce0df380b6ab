package pdfmulti

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfVerifier checks rendered output before it is persisted.
type pdfVerifier interface {
	Verify(pdf []byte) (pages int, err error)
}

// Compile-time interface check
var _ pdfVerifier = (*pdfcpuVerifier)(nil)

// pdfcpuVerifier validates the PDF structure and counts its pages.
type pdfcpuVerifier struct{}

// Verify returns the page count of pdf, or ErrInvalidPDF when the document
// does not parse or has no pages.
func (pdfcpuVerifier) Verify(pdf []byte) (int, error) {
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		return 0, fmt.Errorf("%w: missing PDF header", ErrInvalidPDF)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.Validate(bytes.NewReader(pdf), conf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	pages, err := api.PageCount(bytes.NewReader(pdf), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if pages < 1 {
		return 0, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}
	return pages, nil
}
