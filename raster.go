package pdfmulti

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"
	"net/http"
	"net/url"
	"strings"

	// Registered decoders for image.Decode and image.DecodeConfig.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// mimeSVG is kept as-is: SVG is drawn by the browser, not re-encoded.
const mimeSVG = "image/svg+xml"

// isDataURI reports whether src is an inline data: URI.
func isDataURI(src string) bool {
	return len(src) >= 5 && strings.EqualFold(src[:5], "data:")
}

// decodeDataURI returns the payload of a data: URI (RFC 2397).
func decodeDataURI(src string) ([]byte, error) {
	if !isDataURI(src) {
		return nil, fmt.Errorf("%w: not a data URI", ErrUnsupportedAsset)
	}

	header, payload, ok := strings.Cut(src[5:], ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URI", ErrNotRaster)
	}

	if strings.HasSuffix(strings.ToLower(header), ";base64") {
		// Tolerate whitespace and missing padding, as browsers do
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 payload: %v", ErrNotRaster, err)
		}
		return data, nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid data URI payload: %v", ErrNotRaster, err)
	}
	return []byte(data), nil
}

// isSVG reports whether data looks like an SVG document.
func isSVG(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// verifyImage checks that data is a decodable image, the equivalent of a
// browser firing load rather than error for an <img>.
func verifyImage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty body", ErrNotRaster)
	}
	if isSVG(data) {
		return nil
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrNotRaster, err)
	}
	return nil
}

// encodeDataURI encodes an asset for inlining. Rasters that are not already
// JPEG are flattened onto white and re-encoded at opts.Quality.
func encodeDataURI(data []byte, opts ImageOptions) (string, error) {
	if isSVG(data) {
		return "data:" + mimeSVG + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}

	mime := http.DetectContentType(data)
	if mime == "image/jpeg" || opts.Type != imageType {
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotRaster, err)
	}

	out, err := encodeJPEG(img, opts.Quality)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(out), nil
}

// encodeJPEG flattens img onto a white background and encodes it as JPEG.
// quality is in the 0..1 range.
func encodeJPEG(img image.Image, quality float64) ([]byte, error) {
	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// jpegQuality maps a 0..1 quality to the 1..100 scale of image/jpeg.
func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	return min(max(v, 1), 100)
}
