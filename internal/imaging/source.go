// Package imaging produces the payload of a transfer: it loads a still image
// and shrinks it to something a narrow radio link can carry.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrInvalidQuality    = errors.New("jpeg quality must be between 1 and 100")
	ErrInvalidDimensions = errors.New("target dimensions must be positive")
	ErrNoImagePath       = errors.New("image path must be set")
)

// Source produces one still image per call.
type Source interface {
	Capture(ctx context.Context) (image.Image, error)
}

// FileSource reads the image a camera tool left on disk.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Capture decodes the file at Path. JPEG, PNG, GIF, BMP, TIFF and WebP are
// understood.
func (f *FileSource) Capture(ctx context.Context) (image.Image, error) {
	if f.Path == "" {
		return nil, ErrNoImagePath
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", f.Path, err)
	}
	return img, nil
}
