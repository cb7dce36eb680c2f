package encoder

import (
	"bytes"
	"image"
	"image/jpeg"
)

// JPEGEncoder encodes images to JPEG using Go's standard library.
type JPEGEncoder struct{}

func (e *JPEGEncoder) Format() string    { return "jpeg" }
func (e *JPEGEncoder) Extension() string { return "jpg" }
func (e *JPEGEncoder) MimeType() string  { return "image/jpeg" }

func (e *JPEGEncoder) Encode(img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(256 * 1024) // typical photos land above this

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: percent(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
