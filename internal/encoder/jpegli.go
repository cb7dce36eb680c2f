package encoder

import (
	"bytes"
	"image"

	"github.com/gen2brain/jpegli"
)

// JpegliEncoder encodes baseline-compatible JPEG with the jpegli codec,
// which holds more detail per byte than image/jpeg at the same quality.
type JpegliEncoder struct {
	// FullChroma keeps chroma at full resolution (4:4:4). The default is 4:2:0.
	FullChroma bool
}

func (e *JpegliEncoder) Format() string    { return "jpegli" }
func (e *JpegliEncoder) Extension() string { return "jpg" }
func (e *JpegliEncoder) MimeType() string  { return "image/jpeg" }

func (e *JpegliEncoder) Encode(img image.Image, quality float64) ([]byte, error) {
	ratio := image.YCbCrSubsampleRatio420
	if e.FullChroma {
		ratio = image.YCbCrSubsampleRatio444
	}

	var buf bytes.Buffer
	buf.Grow(256 * 1024)

	err := jpegli.Encode(&buf, img, &jpegli.EncodingOptions{
		Quality:           percent(quality),
		ChromaSubsampling: ratio,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
