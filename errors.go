package pdfmulti

import "errors"

// Sentinel errors for library operations.
var (
	// ErrEmptyContent means there was nothing to convert. It is an abort,
	// not a failure: no tree is staged and no file is produced.
	ErrEmptyContent = errors.New("content cannot be empty")

	// Conversion failures reported by the render driver.
	ErrStage     = errors.New("failed to stage content")
	ErrAssetLoad = errors.New("embedded asset failed to load")
	ErrRender    = errors.New("render failed")
	ErrPersist   = errors.New("failed to persist PDF")

	// Render engine errors, wrapped by ErrRender.
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrPDFGeneration  = errors.New("PDF generation failed")
	ErrInvalidPDF     = errors.New("rendered output is not a valid PDF")

	// Asset resolution errors, wrapped by ErrAssetLoad.
	ErrUnsupportedAsset = errors.New("unsupported asset source")
	ErrAssetTooLarge    = errors.New("asset exceeds maximum size")
	ErrNotRaster        = errors.New("asset is not a decodable image")

	// Host errors.
	ErrBusy          = errors.New("a conversion is already in flight")
	ErrClosed        = errors.New("session is closed")
	ErrTreeReleased  = errors.New("staged tree already released")
	ErrInvalidOption = errors.New("invalid option")
)
