// Package source supplies raw image files to the compressor.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/AnyUserName/imgshrink/internal/compress"
)

// imageExtensions lists file extensions picked up from directories.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// IsImagePath reports whether path has a recognized image extension and is
// not a hidden file.
func IsImagePath(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return imageExtensions[strings.ToLower(filepath.Ext(base))]
}

// Detect sniffs the media type of data from its magic bytes.
func Detect(data []byte) string {
	return mimetype.Detect(data).String()
}

// FromBytes wraps data as a file. The declared type is kept when given;
// otherwise it is sniffed.
func FromBytes(name, declared string, data []byte) compress.File {
	mt := declared
	if mt == "" {
		mt = Detect(data)
	}
	return compress.File{Name: name, MimeType: mt, Data: data}
}

// Open reads one file from disk. Its name is the base name of path.
func Open(path string) (compress.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return compress.File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return compress.File{}, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return compress.File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return FromBytes(filepath.Base(path), "", data), nil
}
