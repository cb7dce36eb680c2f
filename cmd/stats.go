package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgshrink/internal/compress"
	"github.com/AnyUserName/imgshrink/internal/manifest"
)

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir_or_manifest>",
	Short: "Display statistics for an output directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	path, err := manifestPath(args[0])
	if err != nil {
		return err
	}
	m, err := readManifest(path)
	if err != nil {
		return err
	}
	printStats(m)
	return nil
}

// manifestPath accepts either a manifest file or the directory holding one.
func manifestPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return filepath.Join(path, manifest.FileName), nil
	}
	return path, nil
}

// readManifest loads an existing manifest. Unlike manifest.Load, a missing
// file is an error here.
func readManifest(path string) (*manifest.Manifest, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return manifest.Load(path, "")
}

func printStats(m *manifest.Manifest) {
	fmt.Println()
	fmt.Printf("  Manifest version: %d\n", m.Version)
	fmt.Printf("  Generated:        %s\n", m.GeneratedAt)
	fmt.Printf("  Profile:          %s\n", m.Profile)
	fmt.Println()

	s := m.Stats
	fmt.Printf("  Total files:      %d\n", s.TotalEntries)
	fmt.Printf("  Re-encoded:       %d\n", s.Compressed)
	fmt.Printf("  Input size:       %s\n", formatBytes(s.TotalInputBytes))
	fmt.Printf("  Output size:      %s\n", formatBytes(s.TotalOutputBytes))
	if s.TotalInputBytes > 0 {
		ratio := float64(s.TotalOutputBytes) / float64(s.TotalInputBytes) * 100
		fmt.Printf("  Compression:      %.1f%% of original\n", ratio)
	}
	fmt.Println()

	if len(s.Outcomes) > 0 {
		var names []string
		for o := range s.Outcomes {
			names = append(names, o)
		}
		sort.Strings(names)
		fmt.Println("  Outcomes:")
		for _, o := range names {
			fmt.Printf("    %-20s %4d\n", o, s.Outcomes[o])
		}
		fmt.Println()
	}

	// Per-type breakdown.
	typeStats := map[string]struct {
		count int
		bytes int64
	}{}
	for _, e := range m.Entries {
		ts := typeStats[e.MimeType]
		ts.count++
		ts.bytes += e.Size
		typeStats[e.MimeType] = ts
	}
	var types []string
	for t := range typeStats {
		types = append(types, t)
	}
	sort.Strings(types)
	fmt.Println("  Type breakdown:")
	for _, t := range types {
		ts := typeStats[t]
		fmt.Printf("    %-12s  %4d files  %s\n", t, ts.count, formatBytes(ts.bytes))
	}
	fmt.Println()

	// Largest remaining files.
	entries := append([]manifest.Entry(nil), m.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Size > entries[j].Size })
	n := len(entries)
	if n > 10 {
		n = 10
	}
	if n > 0 {
		fmt.Printf("  Top %d heaviest (original → stored):\n", n)
		for _, e := range entries[:n] {
			saved := float64(0)
			if e.OriginalSize > 0 {
				saved = (1 - float64(e.Size)/float64(e.OriginalSize)) * 100
			}
			fmt.Printf("    %-40s %8s → %8s  (−%.0f%%)\n",
				truncKey(e.SourceName, 40),
				formatBytes(e.OriginalSize),
				formatBytes(e.Size),
				saved,
			)
		}
		fmt.Println()
	}

	// Warnings.
	var warnings []string
	for _, e := range m.Entries {
		if e.Size > e.OriginalSize {
			warnings = append(warnings, fmt.Sprintf("%q is larger than its source (%d > %d)", e.Path, e.Size, e.OriginalSize))
		}
		switch e.Outcome {
		case compress.OutcomeDecodeFailure, compress.OutcomeEncodeFailure,
			compress.OutcomeSurfaceUnavailable, compress.OutcomeDeadline:
			warnings = append(warnings, fmt.Sprintf("%q kept original: %s", e.Path, e.Outcome))
		}
	}
	if len(warnings) > 0 {
		fmt.Printf("  Warnings (%d):\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("    ⚠ %s\n", w)
		}
		fmt.Println()
	}
}
