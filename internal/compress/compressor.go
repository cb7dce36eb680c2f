// Package compress re-encodes images to fit under a byte budget while keeping
// as much quality and resolution as the budget allows.
//
// The search runs in two phases against a normalized resolution: a fixed
// number of binary search probes over encoder quality, then, if no probe fit,
// a descending series of downscale factors at a fixed quality. The result is
// only used when it is strictly smaller than the input; in every other case,
// including undecodable input, the original file is returned untouched.
package compress

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log"
	"time"

	"github.com/AnyUserName/imgshrink/internal/canvas"
	"github.com/AnyUserName/imgshrink/internal/encoder"
	"github.com/AnyUserName/imgshrink/internal/profile"
)

// Logger is the subset of *log.Logger the compressor writes to.
type Logger interface {
	Printf(format string, args ...any)
}

// Option configures a Compressor.
type Option func(*Compressor)

// WithLogger sets the trace destination. The default discards.
func WithLogger(l Logger) Option {
	return func(c *Compressor) {
		if l != nil {
			c.log = l
		}
	}
}

// Compressor runs the size-constrained search with a fixed profile and
// encoder. It holds no per-call state and may be shared between goroutines;
// each Compress call owns its own surface.
type Compressor struct {
	prof profile.Profile
	enc  encoder.Encoder
	log  Logger
}

// New creates a Compressor. The profile should already be validated; an
// unparsable background is treated as none.
func New(prof profile.Profile, enc encoder.Encoder, opts ...Option) *Compressor {
	c := &Compressor{
		prof: prof,
		enc:  enc,
		log:  log.New(io.Discard, "", 0),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Profile returns the profile the compressor was built with.
func (c *Compressor) Profile() profile.Profile { return c.prof }

// Encoder returns the encoder used for every attempt.
func (c *Compressor) Encoder() encoder.Encoder { return c.enc }

// Compress returns a re-encoded copy of f that fits the budget and is smaller
// than f, or f itself. It never fails; the report says what happened.
func (c *Compressor) Compress(ctx context.Context, f File) (out File, rep Report) {
	start := time.Now()
	rep = Report{
		Name:         f.Name,
		Format:       c.enc.Format(),
		OriginalSize: f.Size(),
		FinalSize:    f.Size(),
	}
	out = f

	defer func() {
		if r := recover(); r != nil {
			out = f
			rep.FinalSize = f.Size()
			rep.Err = fmt.Errorf("%w: panic: %v", ErrEncode, r)
			c.log.Printf("failed to compress %s: %v", f.Name, rep.Err)
		}
		rep.Elapsed = time.Since(start)
	}()

	if c.prof.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.prof.Timeout)
		defer cancel()
	}

	src, err := canvas.Decode(f.Data, canvas.DecodeOptions{
		AutoOrient: c.prof.AutoOrient,
		MaxPixels:  c.prof.MaxSourcePixels,
	})
	if err != nil {
		rep.Err = fmt.Errorf("%w: %v", ErrDecode, err)
		c.log.Printf("failed to compress %s: %v", f.Name, rep.Err)
		return f, rep
	}

	best := c.search(ctx, src, &rep)
	if best == nil {
		c.logKept(&rep)
		return f, rep
	}
	if best.Size() >= f.Size() {
		rep.Err = fmt.Errorf("%w: %d >= %d bytes", ErrNoImprovement, best.Size(), f.Size())
		c.logKept(&rep)
		return f, rep
	}

	rep.FinalSize = best.Size()
	rep.Quality = best.Quality
	rep.Width, rep.Height = best.Width, best.Height
	rep.Phase = best.Phase
	c.log.Printf("optimized %s: %.2fMB (quality: %.3f, res: %dx%d)",
		f.Name, float64(best.Size())/(1<<20), best.Quality, best.Width, best.Height)

	return File{
		Name:     ReplaceExt(f.Name, c.enc.Extension()),
		MimeType: c.enc.MimeType(),
		Data:     best.Data,
	}, rep
}

// Search runs both phases on an already decoded source and returns the
// winning attempt, or nil with the reason in Report.Err. The size of the
// original file is not considered.
func (c *Compressor) Search(ctx context.Context, src *canvas.Source) (*Attempt, Report) {
	rep := Report{Format: c.enc.Format()}
	best := c.search(ctx, src, &rep)
	return best, rep
}

func (c *Compressor) search(ctx context.Context, src *canvas.Source, rep *Report) *Attempt {
	rep.SourceWidth, rep.SourceHeight = src.Width, src.Height
	w, h := Normalize(src.Width, src.Height, c.prof.MaxEdge)
	rep.Width, rep.Height = w, h

	// Opaque sources draw straight onto the surface.
	var bg color.Color
	if src.HasAlpha() {
		bg, _ = c.prof.BackgroundColor()
	}
	cv, err := canvas.New(src, canvas.Options{
		MaxPixels:  c.prof.MaxSurfacePixels,
		Background: bg,
		Kernel:     c.prof.Kernel,
	})
	if err != nil {
		rep.Err = fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
		return nil
	}
	defer cv.Close()

	best, err := c.searchQuality(ctx, cv, w, h, rep)
	if err == nil && best == nil {
		best, err = c.searchScale(ctx, cv, w, h, rep)
	}
	switch {
	case err != nil:
		rep.Err = err
		return nil
	case best == nil:
		rep.Err = fmt.Errorf("%w: %d bytes at quality %.2f and scale %.2f",
			ErrBudgetUnreachable, c.prof.Budget, c.prof.MinQuality, c.lowestScale())
		return nil
	}
	return best
}

// searchQuality binary searches quality at the normalized resolution. Every
// probe that fits raises the floor, so the last fitting probe is the best.
func (c *Compressor) searchQuality(ctx context.Context, cv *canvas.Canvas, w, h int, rep *Report) (*Attempt, error) {
	if c.prof.Iterations <= 0 {
		return nil, nil
	}
	img, err := cv.Draw(w, h)
	if err != nil {
		return nil, c.drawErr(err)
	}

	lo, hi := c.prof.MinQuality, c.prof.MaxQuality
	var best *Attempt
	for i := 0; i < c.prof.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeadline, err)
		}
		mid := (lo + hi) / 2

		data, err := c.enc.Encode(img, mid)
		rep.Attempts++
		if err != nil {
			return nil, fmt.Errorf("%w: quality %.3f: %v", ErrEncode, mid, err)
		}

		if int64(len(data)) <= c.prof.Budget {
			best = &Attempt{Quality: mid, Width: w, Height: h, Phase: PhaseQuality, Data: data}
			lo = mid
		} else {
			hi = mid
		}
	}
	return best, nil
}

// searchScale shrinks the normalized resolution step by step at a fixed
// quality. Each step draws from the source, not from the previous step, and
// the first size that fits wins.
func (c *Compressor) searchScale(ctx context.Context, cv *canvas.Canvas, w, h int, rep *Report) (*Attempt, error) {
	q := c.prof.FallbackQuality
	for _, scale := range c.prof.Scales() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeadline, err)
		}
		sw, sh := scaleDims(w, h, scale)

		img, err := cv.Draw(sw, sh)
		if err != nil {
			return nil, c.drawErr(err)
		}
		data, err := c.enc.Encode(img, q)
		rep.Attempts++
		if err != nil {
			return nil, fmt.Errorf("%w: scale %.2f: %v", ErrEncode, scale, err)
		}

		if int64(len(data)) <= c.prof.Budget {
			return &Attempt{Quality: q, Width: sw, Height: sh, Phase: PhaseDownscale, Data: data}, nil
		}
	}
	return nil, nil
}

func (c *Compressor) drawErr(err error) error {
	if errors.Is(err, canvas.ErrUnavailable) || errors.Is(err, canvas.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}
	return fmt.Errorf("%w: draw: %v", ErrEncode, err)
}

func (c *Compressor) lowestScale() float64 {
	s := c.prof.Scales()
	if len(s) == 0 {
		return 1
	}
	return s[len(s)-1]
}

func (c *Compressor) logKept(rep *Report) {
	if expected(rep.Err) {
		c.log.Printf("kept original %s: %v", rep.Name, rep.Err)
		return
	}
	c.log.Printf("failed to compress %s: %v", rep.Name, rep.Err)
}
