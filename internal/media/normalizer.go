// Package media validates and normalizes uploaded raster images.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var (
	// ErrInvalidImage is returned for anything that does not decode as a supported image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrInvalidBox is returned by ParseBox for malformed dimensions when best-effort parsing is off.
	ErrInvalidBox = errors.New("invalid target dimensions")
)

// DefaultJPEGQuality is used when the normalizer is built with a non-positive quality.
const DefaultJPEGQuality = 95

var formatMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// Result is a normalized image ready to be stored.
type Result struct {
	ContentType string
	Data        []byte
	Size        int64
}

// Normalizer decodes, orients, resizes and re-encodes images. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	quality   int
	maxPixels int
}

// NewNormalizer creates a normalizer. maxPixels <= 0 disables the pixel ceiling.
func NewNormalizer(jpegQuality, maxPixels int) *Normalizer {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &Normalizer{quality: jpegQuality, maxPixels: maxPixels}
}

// Normalize validates data as an image and returns the bytes to store.
// JPEGs are always re-encoded, which applies the EXIF orientation and drops metadata.
// Other formats are returned untouched unless a box forced a resize.
func (n *Normalizer) Normalize(data []byte, box *Box) (*Result, error) {
	// Header first: rejects non-images and oversized canvases before pixels are allocated.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty canvas", ErrInvalidImage)
	}
	if n.maxPixels > 0 && cfg.Width*cfg.Height > n.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds pixel limit", ErrInvalidImage, cfg.Width, cfg.Height)
	}
	contentType, ok := formatMIME[format]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidImage, format)
	}

	isJPEG := format == "jpeg"
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(isJPEG))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	modified := isJPEG

	if box != nil {
		b := img.Bounds()
		w, h := FitSize(box.Width, box.Height, b.Dx(), b.Dy())
		img = imaging.Resize(img, w, h, imaging.Lanczos)
		modified = true
	}

	if !modified {
		return &Result{ContentType: contentType, Data: data, Size: int64(len(data))}, nil
	}

	encFormat, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, encFormat, imaging.JPEGQuality(n.quality)); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return &Result{ContentType: contentType, Data: buf.Bytes(), Size: int64(buf.Len())}, nil
}
