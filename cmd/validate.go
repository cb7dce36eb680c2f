package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgshrink/internal/hasher"
	"github.com/AnyUserName/imgshrink/internal/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate <out_dir_or_manifest>",
	Short: "Validate a manifest and check stored files against it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	path, err := manifestPath(args[0])
	if err != nil {
		return err
	}
	m, err := readManifest(path)
	if err != nil {
		return err
	}

	errs := validateManifest(m, filepath.Dir(path))
	if len(errs) == 0 {
		fmt.Println("  ✓ Manifest is valid")
		fmt.Printf("  ✓ %d files — all present, sizes and hashes match\n", len(m.Entries))
		return nil
	}

	fmt.Printf("  ✗ Manifest has %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Printf("    • %s\n", e)
	}
	return fmt.Errorf("validation failed with %d errors", len(errs))
}

func validateManifest(m *manifest.Manifest, baseDir string) []string {
	var errs []string

	if m.Version != manifest.SupportedManifestVersion {
		errs = append(errs, fmt.Sprintf("unsupported manifest version: %d", m.Version))
	}

	seenPaths := map[string]bool{}
	for i, e := range m.Entries {
		if e.Path == "" {
			errs = append(errs, fmt.Sprintf("entry[%d]: missing path", i))
			continue
		}
		if seenPaths[e.Path] {
			errs = append(errs, fmt.Sprintf("entry[%d]: duplicate path %q", i, e.Path))
		}
		seenPaths[e.Path] = true

		if e.Outcome == "" {
			errs = append(errs, fmt.Sprintf("entry %q: missing outcome", e.Path))
		}
		if e.Size > e.OriginalSize {
			errs = append(errs, fmt.Sprintf("entry %q: stored file larger than source: %d > %d",
				e.Path, e.Size, e.OriginalSize))
		}

		f, err := os.Open(filepath.Join(baseDir, e.Path))
		if err != nil {
			errs = append(errs, fmt.Sprintf("entry %q: file not found", e.Path))
			continue
		}
		info, err := f.Stat()
		if err == nil && info.Size() != e.Size {
			errs = append(errs, fmt.Sprintf("entry %q: size mismatch: manifest=%d, disk=%d",
				e.Path, e.Size, info.Size()))
		}
		if e.Hash != "" {
			sum, err := hasher.ContentHashReader(f, len(e.Hash))
			switch {
			case err != nil:
				errs = append(errs, fmt.Sprintf("entry %q: read: %v", e.Path, err))
			case sum != e.Hash:
				errs = append(errs, fmt.Sprintf("entry %q: hash mismatch: manifest=%s, disk=%s", e.Path, e.Hash, sum))
			}
		}
		f.Close()
	}

	// Verify stats consistency.
	var in, out int64
	for _, e := range m.Entries {
		in += e.OriginalSize
		out += e.Size
	}
	if m.Stats.TotalEntries != len(m.Entries) {
		errs = append(errs, fmt.Sprintf("stats.total_entries mismatch: %d != %d", m.Stats.TotalEntries, len(m.Entries)))
	}
	if m.Stats.TotalInputBytes != in {
		errs = append(errs, fmt.Sprintf("stats.total_input_bytes mismatch: %d != %d", m.Stats.TotalInputBytes, in))
	}
	if m.Stats.TotalOutputBytes != out {
		errs = append(errs, fmt.Sprintf("stats.total_output_bytes mismatch: %d != %d", m.Stats.TotalOutputBytes, out))
	}

	return errs
}
