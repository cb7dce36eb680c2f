package compress

import (
	"fmt"
	"regexp"
	"time"
)

// File is one image moving between the file source, the compressor and the
// upload sink.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Size returns the byte length of the file.
func (f File) Size() int64 { return int64(len(f.Data)) }

// Phase identifies which search stage produced the chosen candidate.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseQuality
	PhaseDownscale
)

func (p Phase) String() string {
	switch p {
	case PhaseQuality:
		return "quality"
	case PhaseDownscale:
		return "downscale"
	}
	return "none"
}

// Attempt is one encode of the surface at a given quality and size.
type Attempt struct {
	Quality float64
	Width   int
	Height  int
	Phase   Phase
	Data    []byte
}

// Size returns the encoded byte length.
func (a *Attempt) Size() int64 { return int64(len(a.Data)) }

// Report traces one Compress call.
type Report struct {
	Name         string
	Format       string // encoder used for attempts
	OriginalSize int64
	FinalSize    int64

	SourceWidth  int
	SourceHeight int
	Width        int // normalized, or the winning attempt's size
	Height       int
	Quality      float64
	Phase        Phase
	Attempts     int

	Elapsed time.Duration
	Err     error // nil only when the output replaced the original
}

// Compressed reports whether the returned file is a replacement.
func (r Report) Compressed() bool { return r.Err == nil }

// Outcome is a stable name for the result, suitable for manifests.
func (r Report) Outcome() string { return outcomeOf(r.Err) }

func (r Report) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: kept original (%d bytes): %v", r.Name, r.OriginalSize, r.Err)
	}
	return fmt.Sprintf("%s: %.2fMB -> %.2fMB (quality: %.3f, res: %dx%d, attempts: %d)",
		r.Name, float64(r.OriginalSize)/1e6, float64(r.FinalSize)/1e6,
		r.Quality, r.Width, r.Height, r.Attempts)
}

var extRe = regexp.MustCompile(`\.[^/.]+$`)

// ReplaceExt strips the last extension from name and appends ext.
func ReplaceExt(name, ext string) string {
	return extRe.ReplaceAllString(name, "") + "." + ext
}
