package encoder

import (
	"bytes"
	"image"

	"github.com/gen2brain/avif"
)

// DefaultAVIFSpeed trades encode time for size; 0=slowest, 10=fastest.
const DefaultAVIFSpeed = 8

// AVIFEncoder encodes AVIF. The search re-encodes up to fifteen times, so
// the default speed leans fast.
type AVIFEncoder struct {
	Speed int
}

func (e *AVIFEncoder) Format() string    { return "avif" }
func (e *AVIFEncoder) Extension() string { return "avif" }
func (e *AVIFEncoder) MimeType() string  { return "image/avif" }

func (e *AVIFEncoder) Encode(img image.Image, quality float64) ([]byte, error) {
	speed := e.Speed
	if speed <= 0 || speed > 10 {
		speed = DefaultAVIFSpeed
	}
	q := percent(quality)

	var buf bytes.Buffer
	if err := avif.Encode(&buf, img, avif.Options{Quality: q, QualityAlpha: q, Speed: speed}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
