package profile

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Profile holds every tunable of the size-constrained encoder.
type Profile struct {
	Name string `yaml:"name"`

	Budget  int64 `yaml:"budget"`   // output byte ceiling
	MaxEdge int   `yaml:"max_edge"` // longest allowed edge after normalization

	Iterations int     `yaml:"iterations"`  // quality binary search probes
	MinQuality float64 `yaml:"min_quality"` // 0..1
	MaxQuality float64 `yaml:"max_quality"` // 0..1

	ScaleStart      float64 `yaml:"scale_start"`
	ScaleStep       float64 `yaml:"scale_step"`
	ScaleFloor      float64 `yaml:"scale_floor"` // exclusive
	FallbackQuality float64 `yaml:"fallback_quality"`

	Format     string `yaml:"format"`     // encoder registry name
	Kernel     string `yaml:"kernel"`     // canvas resampling kernel
	Background string `yaml:"background"` // "#rrggbb"; empty keeps alpha
	AutoOrient bool   `yaml:"auto_orient"`

	MaxSurfacePixels int           `yaml:"max_surface_pixels"`
	MaxSourcePixels  int           `yaml:"max_source_pixels"`
	Timeout          time.Duration `yaml:"timeout"` // 0 = unbounded
}

// DefaultName is the preset used when none is requested.
const DefaultName = "discord"

// Built-in profiles.
var profiles = map[string]Profile{
	"discord": {
		Name:             "discord",
		Budget:           10 * 1000 * 1000, // under the 10 MiB upload limit
		MaxEdge:          7680,
		Iterations:       7,
		MinQuality:       0.3,
		MaxQuality:       1.0,
		ScaleStart:       0.9,
		ScaleStep:        0.1,
		ScaleFloor:       0.1,
		FallbackQuality:  0.7,
		Format:           "jpeg",
		Kernel:           "catmullrom",
		Background:       "#000000",
		AutoOrient:       true,
		MaxSurfacePixels: 16384 * 16384,
		MaxSourcePixels:  400 * 1000 * 1000,
	},
	"discord-legacy": {
		Name:             "discord-legacy",
		Budget:           8 * 1000 * 1000,
		MaxEdge:          7680,
		Iterations:       7,
		MinQuality:       0.3,
		MaxQuality:       1.0,
		ScaleStart:       0.9,
		ScaleStep:        0.1,
		ScaleFloor:       0.1,
		FallbackQuality:  0.7,
		Format:           "jpeg",
		Kernel:           "catmullrom",
		Background:       "#000000",
		AutoOrient:       true,
		MaxSurfacePixels: 16384 * 16384,
		MaxSourcePixels:  400 * 1000 * 1000,
	},
	"web": {
		Name:             "web",
		Budget:           2 * 1000 * 1000,
		MaxEdge:          2560,
		Iterations:       7,
		MinQuality:       0.3,
		MaxQuality:       0.95,
		ScaleStart:       0.9,
		ScaleStep:        0.1,
		ScaleFloor:       0.1,
		FallbackQuality:  0.7,
		Format:           "webp",
		Kernel:           "catmullrom",
		AutoOrient:       true,
		MaxSurfacePixels: 16384 * 16384,
		MaxSourcePixels:  400 * 1000 * 1000,
		Timeout:          30 * time.Second,
	},
}

// Lookup returns a built-in profile by name.
func Lookup(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// Default returns the reference profile.
func Default() Profile {
	return profiles[DefaultName]
}

// Names lists the built-in profiles in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MaxScales caps the number of downscale factors; each one costs an encode.
const MaxScales = 32

// Scales returns the downscale factors tried after the quality search fails,
// largest first. Factors are derived from the start value rather than by
// repeated subtraction so that float drift cannot add an extra step.
func (p Profile) Scales() []float64 {
	if p.ScaleStep <= 0 {
		return nil
	}
	var out []float64
	for i := 0; i < MaxScales; i++ {
		s := p.ScaleStart - float64(i)*p.ScaleStep
		s = math.Round(s*1e9) / 1e9
		if s <= p.ScaleFloor || s <= 0 {
			break
		}
		out = append(out, s)
	}
	return out
}

// BackgroundColor parses Background. A nil color means no flattening.
func (p Profile) BackgroundColor() (color.Color, error) {
	s := strings.TrimPrefix(strings.TrimSpace(p.Background), "#")
	if s == "" {
		return nil, nil
	}
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return nil, fmt.Errorf("background %q: want #rrggbb", p.Background)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("background %q: %w", p.Background, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Validate reports the first nonsensical setting.
func (p Profile) Validate() error {
	switch {
	case p.Budget <= 0:
		return fmt.Errorf("budget must be positive, got %d", p.Budget)
	case p.MaxEdge <= 0:
		return fmt.Errorf("max_edge must be positive, got %d", p.MaxEdge)
	case p.Iterations < 0:
		return fmt.Errorf("iterations must not be negative, got %d", p.Iterations)
	case p.MinQuality < 0 || p.MaxQuality > 1 || p.MinQuality > p.MaxQuality:
		return fmt.Errorf("quality bounds must satisfy 0 <= min <= max <= 1, got %.3f..%.3f",
			p.MinQuality, p.MaxQuality)
	case p.FallbackQuality <= 0 || p.FallbackQuality > 1:
		return fmt.Errorf("fallback_quality must be in (0,1], got %.3f", p.FallbackQuality)
	case p.ScaleStart > 1 || p.ScaleStart <= 0:
		return fmt.Errorf("scale_start must be in (0,1], got %.3f", p.ScaleStart)
	case p.ScaleStep <= 0:
		return fmt.Errorf("scale_step must be positive, got %.3f", p.ScaleStep)
	case p.ScaleFloor < 0:
		return fmt.Errorf("scale_floor must not be negative, got %.3f", p.ScaleFloor)
	case (p.ScaleStart-p.ScaleFloor)/p.ScaleStep > MaxScales:
		return fmt.Errorf("scale_step %g yields more than %d downscale steps", p.ScaleStep, MaxScales)
	case p.MaxSurfacePixels < 0 || p.MaxSourcePixels < 0:
		return fmt.Errorf("pixel limits must not be negative")
	case p.Timeout < 0:
		return fmt.Errorf("timeout must not be negative, got %s", p.Timeout)
	case p.Format == "":
		return fmt.Errorf("format must be set")
	}
	if _, err := p.BackgroundColor(); err != nil {
		return err
	}
	return nil
}
