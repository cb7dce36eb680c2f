// Package canvas decodes input bytes into a stable source bitmap and renders
// it at arbitrary sizes into a pooled drawing surface.
package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmptyImage     = errors.New("image has no pixels")
	ErrSourceTooLarge = errors.New("image exceeds source pixel limit")
)

// DecodeOptions controls Decode.
type DecodeOptions struct {
	AutoOrient bool // apply the EXIF orientation tag
	MaxPixels  int  // 0 = unlimited; checked before pixel data is decoded
}

// Source is a decoded image. It is never modified after Decode returns; every
// rendition is drawn from it afresh.
type Source struct {
	img    image.Image
	Format string // decoder name, e.g. "jpeg"
	Width  int
	Height int
}

// NewSource wraps an already decoded image.
func NewSource(img image.Image, format string) (*Source, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	return &Source{img: img, Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}

// HasAlpha reports whether any pixel is not fully opaque.
func (s *Source) HasAlpha() bool {
	switch src := s.img.(type) {
	case *image.NRGBA:
		for i := 3; i < len(src.Pix); i += 4 {
			if src.Pix[i] < 255 {
				return true
			}
		}
		return false
	case *image.RGBA:
		for i := 3; i < len(src.Pix); i += 4 {
			if src.Pix[i] < 255 {
				return true
			}
		}
		return false
	case *image.YCbCr, *image.Gray, *image.Gray16, *image.CMYK:
		return false
	default:
		b := src.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if _, _, _, a := src.At(x, y).RGBA(); a < 0xffff {
					return true
				}
			}
		}
		return false
	}
}

// Decode parses data with every registered image decoder.
func Decode(data []byte, opts DecodeOptions) (*Source, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrEmptyImage
	}
	if opts.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(opts.MaxPixels) {
		return nil, fmt.Errorf("%w: %dx%d", ErrSourceTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	if opts.AutoOrient {
		img = applyOrientation(img, readOrientation(data))
	}
	return NewSource(img, format)
}
