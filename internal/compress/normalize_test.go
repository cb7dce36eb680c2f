package compress

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{12000, 8000, 7680, 7680, 5120},
		{8000, 12000, 7680, 5120, 7680},
		{7680, 7680, 7680, 7680, 7680},
		{7681, 100, 7680, 7680, 99},
		{100, 7681, 7680, 99, 7680},
		{20000, 20000, 7680, 7680, 7680},
		{1920, 1080, 7680, 1920, 1080},
		{100000, 3, 7680, 7680, 1},
		{1, 1, 7680, 1, 1},
		{500, 300, 0, 500, 300},
	}
	for _, c := range cases {
		w, h := Normalize(c.w, c.h, c.max)
		if w != c.wantW || h != c.wantH {
			t.Errorf("Normalize(%d, %d, %d): got %dx%d, want %dx%d",
				c.w, c.h, c.max, w, h, c.wantW, c.wantH)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, d := range [][2]int{{12000, 8000}, {9999, 7681}, {640, 480}, {7680, 1}} {
		w1, h1 := Normalize(d[0], d[1], 7680)
		w2, h2 := Normalize(w1, h1, 7680)
		if w1 != w2 || h1 != h2 {
			t.Errorf("%v: %dx%d then %dx%d", d, w1, h1, w2, h2)
		}
	}
}

func TestNormalize_AspectRatio(t *testing.T) {
	for _, d := range [][2]int{{12000, 8000}, {9999, 7681}, {30000, 1234}, {8001, 16003}} {
		w, h := Normalize(d[0], d[1], 7680)
		if w > 7680 || h > 7680 {
			t.Errorf("%v: %dx%d exceeds max edge", d, w, h)
		}
		in := float64(d[0]) / float64(d[1])
		out := float64(w) / float64(h)
		// One pixel of rounding on the shorter edge.
		tol := in / float64(min(w, h))
		if math.Abs(in-out) > tol {
			t.Errorf("%v: ratio %.5f -> %.5f (tolerance %.5f)", d, in, out, tol)
		}
	}
}

func TestScaleDims(t *testing.T) {
	if w, h := scaleDims(7680, 5120, 0.5); w != 3840 || h != 2560 {
		t.Errorf("half: got %dx%d", w, h)
	}
	if w, h := scaleDims(3, 1, 0.2); w != 1 || h != 1 {
		t.Errorf("floor at 1: got %dx%d", w, h)
	}
}

func TestReplaceExt(t *testing.T) {
	cases := map[string]string{
		"photo.png":            "photo.jpg",
		"photo.JPEG":           "photo.jpg",
		"archive.tar.gz":       "archive.tar.jpg",
		"noext":                "noext.jpg",
		"dir.d/noext":          "dir.d/noext.jpg",
		".hidden":              ".jpg",
		"trailing.":            "trailing..jpg",
		"Screenshot 2024.webp": "Screenshot 2024.jpg",
	}
	for in, want := range cases {
		if got := ReplaceExt(in, "jpg"); got != want {
			t.Errorf("ReplaceExt(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestReportOutcome(t *testing.T) {
	if (Report{}).Outcome() != OutcomeCompressed {
		t.Error("nil error should be compressed")
	}
	cases := map[error]string{
		ErrDecode:             OutcomeDecodeFailure,
		ErrSurfaceUnavailable: OutcomeSurfaceUnavailable,
		ErrEncode:             OutcomeEncodeFailure,
		ErrBudgetUnreachable:  OutcomeBudgetUnreachable,
		ErrNoImprovement:      OutcomeNoImprovement,
		ErrDeadline:           OutcomeDeadline,
	}
	for err, want := range cases {
		if got := (Report{Err: err}).Outcome(); got != want {
			t.Errorf("%v: got %q, want %q", err, got, want)
		}
	}
}
