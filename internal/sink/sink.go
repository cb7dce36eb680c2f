// Package sink delivers the chosen file to its destination.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AnyUserName/imgshrink/internal/compress"
	"github.com/AnyUserName/imgshrink/internal/hasher"
	"github.com/AnyUserName/imgshrink/internal/manifest"
)

// Destination is caller-supplied context carried alongside a file. The
// compressor never looks at it.
type Destination struct {
	Channel  string `json:"channel,omitempty"`
	Position int    `json:"position"`
}

// Upload is one file handed to a sink.
type Upload struct {
	File       compress.File
	SourceName string
	Report     compress.Report
	Dest       Destination
}

// Receipt describes a completed upload.
type Receipt struct {
	Path     string      `json:"path"`
	Name     string      `json:"name"`
	MimeType string      `json:"mime_type"`
	Size     int64       `json:"size"`
	Hash     string      `json:"hash"`
	Outcome  string      `json:"outcome"`
	Dest     Destination `json:"destination"`
}

// Sink accepts exactly one final file per call.
type Sink interface {
	Upload(ctx context.Context, u Upload) (Receipt, error)
}

// DirSink stores files under content-addressed names in a directory and
// records each one in the directory's manifest.
type DirSink struct {
	dir     string
	profile string

	mu sync.Mutex // serializes manifest updates
}

// NewDirSink creates dir if needed.
func NewDirSink(dir, profileName string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DirSink{dir: dir, profile: profileName}, nil
}

// Dir returns the output directory.
func (s *DirSink) Dir() string { return s.dir }

// ManifestPath returns the manifest location.
func (s *DirSink) ManifestPath() string {
	return filepath.Join(s.dir, manifest.FileName)
}

// Upload writes u.File as <base>.<hash8>.<ext> and appends a manifest entry.
func (s *DirSink) Upload(ctx context.Context, u Upload) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	f := u.File
	hash := hasher.ContentHash(f.Data, 16)
	name := hasher.FileName(f.Name, hash, extOf(f.Name))
	outPath := filepath.Join(s.dir, name)

	rc := Receipt{
		Path:     name,
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     f.Size(),
		Hash:     hash,
		Outcome:  u.Report.Outcome(),
		Dest:     u.Dest,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Load first so a broken manifest leaves no unrecorded file behind.
	m, err := manifest.Load(s.ManifestPath(), s.profile)
	if err != nil {
		return Receipt{}, err
	}
	_, statErr := os.Stat(outPath)
	existed := statErr == nil
	if err := os.WriteFile(outPath, f.Data, 0o644); err != nil {
		return Receipt{}, fmt.Errorf("write %s: %w", name, err)
	}

	source := u.SourceName
	if source == "" {
		source = f.Name
	}
	orig := u.Report.OriginalSize
	if orig == 0 {
		orig = f.Size()
	}
	m.Add(manifest.Entry{
		Path:         name,
		Name:         f.Name,
		SourceName:   source,
		MimeType:     f.MimeType,
		Size:         f.Size(),
		Hash:         hash,
		OriginalSize: orig,
		Width:        u.Report.Width,
		Height:       u.Report.Height,
		Quality:      u.Report.Quality,
		Attempts:     u.Report.Attempts,
		Outcome:      rc.Outcome,
		Channel:      u.Dest.Channel,
		Position:     u.Dest.Position,
		UploadedAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err := manifest.WriteJSON(m, s.ManifestPath()); err != nil {
		if !existed {
			os.Remove(outPath)
		}
		return Receipt{}, fmt.Errorf("write manifest: %w", err)
	}
	return rc, nil
}

func extOf(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 {
		return "bin"
	}
	return ext[1:]
}
