package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgshrink/internal/compress"
	"github.com/AnyUserName/imgshrink/internal/encoder"
	"github.com/AnyUserName/imgshrink/internal/profile"
)

var (
	version = "0.1.0"
	verbose bool

	profileName string
	configPath  string
	formatName  string
)

var rootCmd = &cobra.Command{
	Use:   "imgshrink",
	Short: "Re-encode images to fit under an upload size limit",
	Long: `imgshrink — re-encodes photos and screenshots so they fit under a byte
budget (10 MB by default), keeping as much quality and resolution as the
budget allows.

Files that already fit, or that cannot be made smaller, are passed through
unchanged. Output can go to a content-addressed directory with a manifest.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVarP(&profileName, "profile", "p", profile.DefaultName, "compression profile")
	pf.StringVarP(&configPath, "config", "c", "", "YAML file overriding profile fields")
	pf.StringVarP(&formatName, "format", "f", "", "output encoder (overrides profile)")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"imgshrink %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[imgshrink] "+format+"\n", args...)
	}
}

// newLogger returns the trace logger handed to library packages.
func newLogger() *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "[imgshrink] ", 0)
}

// loadProfile resolves --profile, --config and --format into one profile.
func loadProfile() (profile.Profile, error) {
	prof, ok := profile.Lookup(profileName)
	if !ok {
		return prof, fmt.Errorf("unknown profile %q (available: %v)", profileName, profile.Names())
	}
	if configPath != "" {
		var err error
		if prof, err = profile.LoadFile(configPath, prof); err != nil {
			return prof, err
		}
	}
	if formatName != "" {
		prof.Format = formatName
	}
	if err := prof.Validate(); err != nil {
		return prof, fmt.Errorf("profile %s: %w", prof.Name, err)
	}
	return prof, nil
}

// newCompressor builds the compressor for the resolved profile.
func newCompressor() (*compress.Compressor, error) {
	prof, err := loadProfile()
	if err != nil {
		return nil, err
	}
	enc, err := encoder.NewRegistry().Lookup(prof.Format)
	if err != nil {
		return nil, err
	}
	logVerbose("profile: %s (budget=%s, max edge=%d, format=%s)",
		prof.Name, formatBytes(prof.Budget), prof.MaxEdge, enc.Format())
	return compress.New(prof, enc, compress.WithLogger(newLogger())), nil
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func truncKey(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
