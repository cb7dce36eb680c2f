package encoder

import (
	"image"
	"math"
)

// Encoder encodes an image to a lossy format.
type Encoder interface {
	// Format returns the registry name (e.g. "jpeg", "webp", "avif").
	Format() string

	// Encode converts the image to bytes at the given quality in [0,1].
	Encode(img image.Image, quality float64) ([]byte, error)

	// Extension returns the file extension without dot.
	Extension() string

	// MimeType returns the media type of the encoded output.
	MimeType() string
}

// percent maps a [0,1] quality onto the 1-100 scale the codecs expect.
func percent(quality float64) int {
	q := int(math.Round(quality * 100))
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
