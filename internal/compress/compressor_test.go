package compress

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/AnyUserName/imgshrink/internal/canvas"
	"github.com/AnyUserName/imgshrink/internal/encoder"
	"github.com/AnyUserName/imgshrink/internal/profile"
)

type probe struct {
	quality float64
	w, h    int
}

// fakeEncoder produces size(quality, pixels) zero bytes and records every call.
type fakeEncoder struct {
	size   func(q float64, w, h int) int
	failAt int // 1-based call index that returns an error; 0 = never
	delay  time.Duration
	seen   func(img image.Image)
	calls  []probe
}

func (e *fakeEncoder) Format() string    { return "fake" }
func (e *fakeEncoder) Extension() string { return "jpg" }
func (e *fakeEncoder) MimeType() string  { return "image/jpeg" }

func (e *fakeEncoder) Encode(img image.Image, q float64) ([]byte, error) {
	b := img.Bounds()
	e.calls = append(e.calls, probe{q, b.Dx(), b.Dy()})
	if e.seen != nil {
		e.seen(img)
	}
	time.Sleep(e.delay)
	if e.failAt > 0 && len(e.calls) == e.failAt {
		return nil, errors.New("boom")
	}
	return make([]byte, e.size(q, b.Dx(), b.Dy())), nil
}

// linearSize is 10000 bytes per unit quality at 100x50, proportional to area.
func linearSize(q float64, w, h int) int {
	return int(q*10000) * w * h / 5000
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255,
			})
		}
	}
	return img
}

func noise(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

// paddedPNG returns a PNG of img followed by zeros up to total bytes. The PNG
// decoder stops at IEND, so the padding only inflates the file size.
func paddedPNG(t *testing.T, img image.Image, total int) []byte {
	t.Helper()
	data := pngBytes(t, img)
	if len(data) > total {
		t.Fatalf("png is %d bytes, larger than requested %d", len(data), total)
	}
	return append(data, make([]byte, total-len(data))...)
}

func testProfile() profile.Profile {
	p := profile.Default()
	p.MaxEdge = 1000
	p.AutoOrient = false
	return p
}

func newSource(t *testing.T, w, h int) *canvas.Source {
	t.Helper()
	src, err := canvas.NewSource(gradient(w, h), "png")
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func TestSearch_QualityPhase(t *testing.T) {
	for _, budget := range []int64{3100, 5000, 6500, 8000, 9900, 10000} {
		p := testProfile()
		p.Budget = budget
		enc := &fakeEncoder{size: linearSize}

		best, rep := New(p, enc).Search(context.Background(), newSource(t, 100, 50))
		if best == nil {
			t.Fatalf("budget %d: no candidate: %v", budget, rep.Err)
		}
		if len(enc.calls) != p.Iterations {
			t.Errorf("budget %d: %d probes, want exactly %d", budget, len(enc.calls), p.Iterations)
		}
		if best.Phase != PhaseQuality {
			t.Errorf("budget %d: phase %s", budget, best.Phase)
		}
		if best.Size() > budget {
			t.Errorf("budget %d: best is %d bytes", budget, best.Size())
		}
		if best.Width != 100 || best.Height != 50 {
			t.Errorf("budget %d: resolution %dx%d", budget, best.Width, best.Height)
		}

		// The largest fitting quality is budget/10000; the search must land
		// within one final interval width of it.
		limit := math.Min(float64(budget)/10000, p.MaxQuality)
		width := (p.MaxQuality - p.MinQuality) / math.Pow(2, float64(p.Iterations))
		if best.Quality > limit+1e-9 || limit-best.Quality > width+1e-4 {
			t.Errorf("budget %d: quality %.5f, fitting limit %.5f, interval %.5f",
				budget, best.Quality, limit, width)
		}

		// No larger probed quality fit the budget.
		for _, c := range enc.calls {
			if c.quality > best.Quality && int64(linearSize(c.quality, c.w, c.h)) <= budget {
				t.Errorf("budget %d: probe %.5f fit but best is %.5f", budget, c.quality, best.Quality)
			}
		}
	}
}

func TestSearch_ProbeSequence(t *testing.T) {
	p := testProfile()
	p.Budget = 8000
	enc := &fakeEncoder{size: linearSize}
	New(p, enc).Search(context.Background(), newSource(t, 100, 50))

	want := []float64{0.65, 0.825, 0.7375, 0.78125, 0.803125, 0.7921875, 0.79765625}
	if len(enc.calls) != len(want) {
		t.Fatalf("probes: got %d", len(enc.calls))
	}
	for i, q := range want {
		if math.Abs(enc.calls[i].quality-q) > 1e-12 {
			t.Errorf("probe %d: got %.8f, want %.8f", i, enc.calls[i].quality, q)
		}
	}
}

func TestSearch_DownscalePhase(t *testing.T) {
	p := testProfile()
	p.Budget = 1000
	enc := &fakeEncoder{size: linearSize}

	best, rep := New(p, enc).Search(context.Background(), newSource(t, 100, 50))
	if best == nil {
		t.Fatalf("no candidate: %v", rep.Err)
	}
	if best.Phase != PhaseDownscale {
		t.Errorf("phase: got %s", best.Phase)
	}
	if best.Quality != p.FallbackQuality {
		t.Errorf("quality: got %.3f, want %.3f", best.Quality, p.FallbackQuality)
	}

	scales := p.Scales()
	down := enc.calls[p.Iterations:]
	for i, c := range down {
		w, h := scaleDims(100, 50, scales[i])
		if c.w != w || c.h != h {
			t.Errorf("step %d (scale %.1f): drew %dx%d, want %dx%d from normalized size",
				i, scales[i], c.w, c.h, w, h)
		}
		if c.quality != p.FallbackQuality {
			t.Errorf("step %d: quality %.3f", i, c.quality)
		}
	}

	// First fitting scale wins; nothing smaller is tried.
	last := down[len(down)-1]
	if last.w != best.Width || last.h != best.Height {
		t.Errorf("winner %dx%d is not the last attempt %dx%d", best.Width, best.Height, last.w, last.h)
	}
	for _, c := range down[:len(down)-1] {
		if int64(linearSize(c.quality, c.w, c.h)) <= p.Budget {
			t.Errorf("earlier step %dx%d already fit", c.w, c.h)
		}
	}
	if rep.Attempts != len(enc.calls) {
		t.Errorf("attempts: report %d, encoder %d", rep.Attempts, len(enc.calls))
	}
}

func TestSearch_BudgetUnreachable(t *testing.T) {
	p := testProfile()
	p.Budget = 10
	enc := &fakeEncoder{size: linearSize}

	best, rep := New(p, enc).Search(context.Background(), newSource(t, 100, 50))
	if best != nil {
		t.Fatalf("unexpected candidate %+v", best)
	}
	if !errors.Is(rep.Err, ErrBudgetUnreachable) {
		t.Errorf("err: got %v", rep.Err)
	}
	if want := p.Iterations + len(p.Scales()); len(enc.calls) != want {
		t.Errorf("attempts: got %d, want %d", len(enc.calls), want)
	}
}

func TestSearch_Normalizes(t *testing.T) {
	p := testProfile()
	p.MaxEdge = 40
	p.Budget = 1 << 30
	enc := &fakeEncoder{size: linearSize}

	best, _ := New(p, enc).Search(context.Background(), newSource(t, 100, 50))
	if best == nil {
		t.Fatal("no candidate")
	}
	if best.Width != 40 || best.Height != 20 {
		t.Errorf("resolution: got %dx%d, want 40x20", best.Width, best.Height)
	}
}

func TestSearch_SurfaceUnavailable(t *testing.T) {
	p := testProfile()
	p.MaxSurfacePixels = 100
	enc := &fakeEncoder{size: linearSize}

	best, rep := New(p, enc).Search(context.Background(), newSource(t, 100, 50))
	if best != nil || !errors.Is(rep.Err, ErrSurfaceUnavailable) {
		t.Errorf("got %v, %v", best, rep.Err)
	}
	if len(enc.calls) != 0 {
		t.Errorf("encoder called %d times", len(enc.calls))
	}
}

func TestCompress_Replaces(t *testing.T) {
	p := testProfile()
	p.Budget = 8000
	enc := &fakeEncoder{size: linearSize}
	in := File{Name: "holiday.photo.png", MimeType: "image/png", Data: paddedPNG(t, gradient(100, 50), 50_000)}

	out, rep := New(p, enc).Compress(context.Background(), in)
	if !rep.Compressed() {
		t.Fatalf("not compressed: %v", rep.Err)
	}
	if out.Name != "holiday.photo.jpg" {
		t.Errorf("name: got %q", out.Name)
	}
	if out.MimeType != "image/jpeg" {
		t.Errorf("mime: got %q", out.MimeType)
	}
	if out.Size() >= in.Size() || out.Size() > p.Budget {
		t.Errorf("size: got %d (original %d, budget %d)", out.Size(), in.Size(), p.Budget)
	}
	if rep.FinalSize != out.Size() || rep.OriginalSize != in.Size() {
		t.Errorf("report sizes: %d/%d", rep.FinalSize, rep.OriginalSize)
	}
	if rep.Outcome() != OutcomeCompressed {
		t.Errorf("outcome: got %q", rep.Outcome())
	}
}

func TestCompress_NoImprovement(t *testing.T) {
	p := testProfile()
	p.Budget = 1 << 30
	enc := &fakeEncoder{size: func(float64, int, int) int { return 1 << 20 }}
	in := File{Name: "small.png", MimeType: "image/png", Data: pngBytes(t, gradient(100, 50))}

	out, rep := New(p, enc).Compress(context.Background(), in)
	if !errors.Is(rep.Err, ErrNoImprovement) {
		t.Errorf("err: got %v", rep.Err)
	}
	assertOriginal(t, in, out)
}

func TestCompress_DecodeFailure(t *testing.T) {
	enc := &fakeEncoder{size: linearSize}
	in := File{Name: "broken.jpg", MimeType: "image/jpeg", Data: []byte("\xff\xd8\xff\xe0 corrupted")}

	out, rep := New(testProfile(), enc).Compress(context.Background(), in)
	if !errors.Is(rep.Err, ErrDecode) {
		t.Errorf("err: got %v", rep.Err)
	}
	if rep.Outcome() != OutcomeDecodeFailure {
		t.Errorf("outcome: got %q", rep.Outcome())
	}
	if len(enc.calls) != 0 {
		t.Errorf("encoder called %d times", len(enc.calls))
	}
	assertOriginal(t, in, out)
}

func TestCompress_EncodeFailure(t *testing.T) {
	p := testProfile()
	p.Budget = 8000
	enc := &fakeEncoder{size: linearSize, failAt: 3}
	in := File{Name: "a.png", Data: paddedPNG(t, gradient(100, 50), 50_000)}

	out, rep := New(p, enc).Compress(context.Background(), in)
	if !errors.Is(rep.Err, ErrEncode) {
		t.Errorf("err: got %v", rep.Err)
	}
	if len(enc.calls) != 3 {
		t.Errorf("search continued after failure: %d calls", len(enc.calls))
	}
	assertOriginal(t, in, out)
}

func TestCompress_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	enc := &fakeEncoder{size: linearSize}
	in := File{Name: "a.png", Data: paddedPNG(t, gradient(100, 50), 50_000)}

	out, rep := New(testProfile(), enc).Compress(ctx, in)
	if !errors.Is(rep.Err, ErrDeadline) {
		t.Errorf("err: got %v", rep.Err)
	}
	assertOriginal(t, in, out)
}

func TestCompress_Timeout(t *testing.T) {
	p := testProfile()
	p.Budget = 10 // forces both phases if nothing stops the search
	p.Timeout = 10 * time.Millisecond
	enc := &fakeEncoder{size: linearSize, delay: 20 * time.Millisecond}
	in := File{Name: "a.png", Data: paddedPNG(t, gradient(100, 50), 50_000)}

	out, rep := New(p, enc).Compress(context.Background(), in)
	if !errors.Is(rep.Err, ErrDeadline) {
		t.Errorf("err: got %v", rep.Err)
	}
	if rep.Outcome() != OutcomeDeadline {
		t.Errorf("outcome: got %q", rep.Outcome())
	}
	if len(enc.calls) >= p.Iterations {
		t.Errorf("search ran %d attempts past the deadline", len(enc.calls))
	}
	assertOriginal(t, in, out)
}

func TestSearch_FlattensTransparentSources(t *testing.T) {
	p := testProfile()
	p.Budget = 1 << 30
	p.Background = "#ffffff"

	transparent := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	src, err := canvas.NewSource(transparent, "png")
	if err != nil {
		t.Fatal(err)
	}
	var got color.NRGBA
	enc := &fakeEncoder{size: linearSize, seen: func(img image.Image) {
		got = img.(*image.NRGBA).NRGBAAt(5, 5)
	}}
	New(p, enc).Search(context.Background(), src)
	if got != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("transparent pixel drawn as %v, want white", got)
	}

	opaque := gradient(20, 20)
	src, _ = canvas.NewSource(opaque, "png")
	enc.seen = func(img image.Image) {
		got = img.(*image.NRGBA).NRGBAAt(5, 5)
	}
	New(p, enc).Search(context.Background(), src)
	if want := opaque.NRGBAAt(5, 5); got != want {
		t.Errorf("opaque pixel drawn as %v, want %v", got, want)
	}
}

type panicEncoder struct{ fakeEncoder }

func (e *panicEncoder) Encode(image.Image, float64) ([]byte, error) { panic("codec bug") }

func TestCompress_RecoversPanic(t *testing.T) {
	in := File{Name: "a.png", Data: pngBytes(t, gradient(10, 10))}
	out, rep := New(testProfile(), &panicEncoder{}).Compress(context.Background(), in)
	if !errors.Is(rep.Err, ErrEncode) {
		t.Errorf("err: got %v", rep.Err)
	}
	assertOriginal(t, in, out)
}

// The following use the real JPEG encoder.

func TestCompress_JPEG_DownsizesLargeImage(t *testing.T) {
	p := testProfile()
	p.MaxEdge = 120
	p.Budget = 20_000
	in := File{Name: "big.png", MimeType: "image/png", Data: pngBytes(t, noise(300, 200, 7))}

	out, rep := New(p, &encoder.JPEGEncoder{}).Compress(context.Background(), in)
	if !rep.Compressed() {
		t.Fatalf("not compressed: %v", rep.Err)
	}
	if out.Size() > p.Budget || out.Size() >= in.Size() {
		t.Errorf("size %d (budget %d, original %d)", out.Size(), p.Budget, in.Size())
	}
	if rep.Quality < 0.3 || rep.Quality > 1 {
		t.Errorf("quality %.3f out of range", rep.Quality)
	}

	img, err := jpeg.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("output is not a jpeg: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > 120 || b.Dy() > 80 {
		t.Errorf("output %dx%d exceeds normalized 120x80", b.Dx(), b.Dy())
	}
	if b.Dx() != rep.Width || b.Dy() != rep.Height {
		t.Errorf("report %dx%d, decoded %dx%d", rep.Width, rep.Height, b.Dx(), b.Dy())
	}
}

func TestCompress_JPEG_BudgetUnreachable(t *testing.T) {
	p := testProfile()
	p.Budget = 100 // below the size of JPEG headers alone
	in := File{Name: "noise.png", Data: pngBytes(t, noise(120, 80, 3))}

	out, rep := New(p, &encoder.JPEGEncoder{}).Compress(context.Background(), in)
	if !errors.Is(rep.Err, ErrBudgetUnreachable) {
		t.Errorf("err: got %v", rep.Err)
	}
	if rep.Attempts != p.Iterations+len(p.Scales()) {
		t.Errorf("attempts: got %d", rep.Attempts)
	}
	assertOriginal(t, in, out)
}

func TestCompress_JPEG_AlreadySmall(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, noise(32, 32, 5), &jpeg.Options{Quality: 5}); err != nil {
		t.Fatal(err)
	}
	in := File{Name: "tiny.jpg", MimeType: "image/jpeg", Data: buf.Bytes()}

	out, rep := New(testProfile(), &encoder.JPEGEncoder{}).Compress(context.Background(), in)
	if rep.Compressed() {
		t.Fatalf("re-encode at quality %.3f claimed to shrink a quality-5 jpeg", rep.Quality)
	}
	if !errors.Is(rep.Err, ErrNoImprovement) {
		t.Errorf("err: got %v", rep.Err)
	}
	assertOriginal(t, in, out)
}

func assertOriginal(t *testing.T, in, out File) {
	t.Helper()
	if out.Name != in.Name || out.MimeType != in.MimeType || !bytes.Equal(out.Data, in.Data) {
		t.Errorf("expected original file back, got %q (%s, %d bytes)", out.Name, out.MimeType, len(out.Data))
	}
}
