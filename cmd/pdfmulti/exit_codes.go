package main

import (
	"context"
	"errors"
	"os"

	pdfmulti "github.com/alnah/go-pdfmulti"
	"github.com/alnah/go-pdfmulti/internal/config"
	"github.com/alnah/go-pdfmulti/internal/fileutil"
	"github.com/alnah/go-pdfmulti/internal/hints"
	"github.com/alnah/go-pdfmulti/internal/sink"
)

// Exit codes for the pdfmulti CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Successful conversion
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or input type
	ExitIO      = 3 // File not found, permission denied, persist failure
	ExitBrowser = 4 // Browser/Chrome or render errors
	ExitAsset   = 5 // An image in the content failed to load
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Asset errors (exit 5)
	if errors.Is(err, pdfmulti.ErrAssetLoad) {
		return ExitAsset
	}

	// Browser/render errors (exit 4)
	if errors.Is(err, pdfmulti.ErrBrowserConnect) ||
		errors.Is(err, pdfmulti.ErrPageCreate) ||
		errors.Is(err, pdfmulti.ErrPageLoad) ||
		errors.Is(err, pdfmulti.ErrPDFGeneration) ||
		errors.Is(err, pdfmulti.ErrInvalidPDF) ||
		errors.Is(err, pdfmulti.ErrRender) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, pdfmulti.ErrStage) ||
		errors.Is(err, pdfmulti.ErrPersist) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, pdfmulti.ErrInvalidOption) ||
		errors.Is(err, fileutil.ErrNameTraversal) ||
		errors.Is(err, ErrUnsupportedInput) ||
		errors.Is(err, errUsage) {
		return ExitUsage
	}

	return ExitGeneral
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error, usingGCS bool) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, pdfmulti.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	case errors.Is(err, pdfmulti.ErrAssetLoad):
		return hints.ForAssetLoad(errors.Is(err, context.DeadlineExceeded))
	case errors.Is(err, context.DeadlineExceeded):
		return hints.ForTimeout()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(nil)
	case errors.Is(err, sink.ErrObjectExists):
		return ""
	case errors.Is(err, pdfmulti.ErrPersist) && usingGCS:
		return hints.ForGCS()
	case errors.Is(err, pdfmulti.ErrPersist):
		return hints.ForOutputDirectory()
	}
	return ""
}
