package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	DefaultWidth   = 100
	DefaultHeight  = 100
	DefaultQuality = 20
)

// Dimensions is a target size in pixels.
type Dimensions struct {
	Width  int
	Height int
}

// Validate rejects empty or negative sizes.
func (d Dimensions) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return ErrInvalidDimensions
	}
	return nil
}

// Compressor scales an image to fixed dimensions and encodes it as JPEG.
// Aspect ratio is not preserved; every transfer has the same pixel budget.
type Compressor struct {
	scaler draw.Scaler
}

func NewCompressor() *Compressor {
	return &Compressor{scaler: draw.CatmullRom}
}

// Compress returns the JPEG bytes of img resized to dims at the given quality.
func (c *Compressor) Compress(img image.Image, dims Dimensions, quality int) ([]byte, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if quality < 1 || quality > 100 {
		return nil, ErrInvalidQuality
	}

	dst := image.NewRGBA(image.Rect(0, 0, dims.Width, dims.Height))
	c.scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
