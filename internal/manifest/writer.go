package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// New creates an empty manifest with defaults.
func New(profileName string) *Manifest {
	return &Manifest{
		Version:     SupportedManifestVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Profile:     profileName,
	}
}

// Add appends an entry and refreshes the stats.
func (m *Manifest) Add(e Entry) {
	m.Entries = append(m.Entries, e)
	m.ComputeStats()
}

// ComputeStats recalculates aggregate statistics from entries.
func (m *Manifest) ComputeStats() {
	s := Stats{Outcomes: map[string]int{}}
	s.TotalEntries = len(m.Entries)
	for _, e := range m.Entries {
		s.TotalInputBytes += e.OriginalSize
		s.TotalOutputBytes += e.Size
		s.Outcomes[e.Outcome]++
		if e.Outcome == "compressed" {
			s.Compressed++
		}
	}
	m.Stats = s
}

// Load reads a manifest from path. A missing file yields an empty manifest
// for profileName.
func Load(path, profileName string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(profileName), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// WriteJSON serializes the manifest to path, replacing it atomically.
func WriteJSON(m *Manifest, path string) error {
	m.ComputeStats()
	m.GeneratedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
