package canvas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"golang.org/x/image/draw"
)

var (
	ErrUnavailable = errors.New("drawing surface unavailable")
	ErrClosed      = errors.New("canvas is closed")
)

// Options configures a Canvas.
type Options struct {
	MaxPixels  int         // largest surface Draw may allocate; 0 = unlimited
	Background color.Color // nil keeps source alpha
	Kernel     string      // see Kernel
}

// pixPool recycles surface buffers between invocations. Buffers for large
// images run to hundreds of megabytes.
var pixPool = sync.Pool{New: func() any { return new([]uint8) }}

// Canvas renders a Source at requested sizes into a reusable buffer.
// A Canvas is not safe for concurrent use.
type Canvas struct {
	src    *Source
	opts   Options
	kernel draw.Interpolator
	pix    *[]uint8
	closed bool
}

// New acquires a surface for src. The caller must Close it.
func New(src *Source, opts Options) (*Canvas, error) {
	if src == nil || src.Width <= 0 || src.Height <= 0 {
		return nil, fmt.Errorf("%w: empty source", ErrUnavailable)
	}
	k, err := Kernel(opts.Kernel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Canvas{
		src:    src,
		opts:   opts,
		kernel: k,
		pix:    pixPool.Get().(*[]uint8),
	}, nil
}

// Draw renders the source scaled to w×h. The returned image aliases the
// canvas buffer and is only valid until the next Draw or Close.
func (c *Canvas) Draw(w, h int) (image.Image, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrUnavailable, w, h)
	}
	if c.opts.MaxPixels > 0 && int64(w)*int64(h) > int64(c.opts.MaxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnavailable, w, h, c.opts.MaxPixels)
	}

	n := w * h * 4
	if cap(*c.pix) < n {
		*c.pix = make([]uint8, n)
	}
	dst := &image.NRGBA{
		Pix:    (*c.pix)[:n],
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}

	op := draw.Src
	if c.opts.Background != nil {
		draw.Draw(dst, dst.Rect, image.NewUniform(c.opts.Background), image.Point{}, draw.Src)
		op = draw.Over
	}

	sb := c.src.img.Bounds()
	if sb.Dx() == w && sb.Dy() == h {
		draw.Draw(dst, dst.Rect, c.src.img, sb.Min, op)
	} else {
		c.kernel.Scale(dst, dst.Rect, c.src.img, sb, op, nil)
	}
	return dst, nil
}

// Close releases the surface buffer. It is safe to call more than once.
func (c *Canvas) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	pixPool.Put(c.pix)
	c.pix = nil
	return nil
}

// Kernel resolves a resampling kernel by name. Empty selects Catmull-Rom.
func Kernel(name string) (draw.Interpolator, error) {
	switch strings.ToLower(name) {
	case "", "catmullrom", "catmull-rom":
		return draw.CatmullRom, nil
	case "bilinear":
		return draw.BiLinear, nil
	case "approxbilinear":
		return draw.ApproxBiLinear, nil
	case "nearest":
		return draw.NearestNeighbor, nil
	}
	return nil, fmt.Errorf("unknown kernel %q", name)
}
