package encoder

import (
	"fmt"
	"strings"
)

// priority is the listing order for Formats.
var priority = []string{"jpeg", "jpegli", "webp", "avif"}

// aliases map common spellings onto registry names.
var aliases = map[string]string{
	"jpg": "jpeg",
}

// Registry holds the encoders selectable by name.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry creates a registry with every built-in encoder.
func NewRegistry() *Registry {
	r := &Registry{
		encoders: make(map[string]Encoder),
	}
	for _, enc := range []Encoder{
		&JPEGEncoder{},
		&JpegliEncoder{},
		&WebPEncoder{},
		&AVIFEncoder{},
	} {
		r.Register(enc)
	}
	return r
}

// Register adds or replaces an encoder under its Format name.
func (r *Registry) Register(enc Encoder) {
	r.encoders[strings.ToLower(enc.Format())] = enc
}

// Get returns an encoder for the given format, or nil if unknown.
func (r *Registry) Get(format string) Encoder {
	f := strings.ToLower(strings.TrimSpace(format))
	if a, ok := aliases[f]; ok {
		f = a
	}
	return r.encoders[f]
}

// Lookup is Get with an error naming the known formats.
func (r *Registry) Lookup(format string) (Encoder, error) {
	if enc := r.Get(format); enc != nil {
		return enc, nil
	}
	return nil, fmt.Errorf("unknown format %q (%s)", format, r.String())
}

// Formats returns registered format names, built-ins first.
func (r *Registry) Formats() []string {
	var result []string
	seen := map[string]bool{}
	for _, f := range priority {
		if _, ok := r.encoders[f]; ok {
			result = append(result, f)
			seen[f] = true
		}
	}
	for f := range r.encoders {
		if !seen[f] {
			result = append(result, f)
		}
	}
	return result
}

// String returns a summary of available encoders.
func (r *Registry) String() string {
	avail := r.Formats()
	if len(avail) == 0 {
		return "no encoders available"
	}
	return fmt.Sprintf("encoders: %s", strings.Join(avail, ", "))
}
