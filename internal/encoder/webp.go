package encoder

import (
	"bytes"
	"image"

	"github.com/chai2010/webp"
)

// WebPEncoder encodes lossy WebP through libwebp. Alpha is kept.
type WebPEncoder struct{}

func (e *WebPEncoder) Format() string    { return "webp" }
func (e *WebPEncoder) Extension() string { return "webp" }
func (e *WebPEncoder) MimeType() string  { return "image/webp" }

func (e *WebPEncoder) Encode(img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(128 * 1024)

	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(percent(quality))}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
