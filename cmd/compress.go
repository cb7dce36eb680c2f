package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgshrink/internal/compress"
	"github.com/AnyUserName/imgshrink/internal/manifest"
	"github.com/AnyUserName/imgshrink/internal/sink"
	"github.com/AnyUserName/imgshrink/internal/source"
)

var (
	compressOutDir   string
	compressChannel  string
	compressPosition int
	compressDryRun   bool
)

var compressCmd = &cobra.Command{
	Use:   "compress <file>...",
	Short: "Compress image files to fit the profile budget",
	Long: `Re-encodes each file under the profile's byte budget and stores the result
in the output directory under a content-addressed name:
<base>.<hash>.<ext>. Files are handled one at a time in argument order.

A file that cannot be made smaller (or cannot be decoded) is stored
unchanged. Every stored file is recorded in imgshrink.manifest.json.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompress,
}

func init() {
	compressCmd.Flags().StringVarP(&compressOutDir, "out", "o", "./imgshrink_out", "output directory")
	compressCmd.Flags().StringVar(&compressChannel, "channel", "", "destination channel recorded in the manifest")
	compressCmd.Flags().IntVar(&compressPosition, "position", 0, "position of the first file; later files count up")
	compressCmd.Flags().BoolVar(&compressDryRun, "dry-run", false, "report results without writing anything")
	rootCmd.AddCommand(compressCmd)
}

func runCompress(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comp, err := newCompressor()
	if err != nil {
		return err
	}

	var out sink.Sink
	if !compressDryRun {
		absOutput, err := filepath.Abs(compressOutDir)
		if err != nil {
			return fmt.Errorf("resolve output path: %w", err)
		}
		logVerbose("output:  %s", absOutput)
		ds, err := sink.NewDirSink(absOutput, comp.Profile().Name)
		if err != nil {
			return err
		}
		out = ds
	}

	var reports []compress.Report
	for i, path := range args {
		if ctx.Err() != nil {
			break
		}
		rep, err := compressOne(ctx, comp, out, path, sink.Destination{
			Channel:  compressChannel,
			Position: compressPosition + i,
		})
		if err != nil {
			return err
		}
		reports = append(reports, rep)
	}

	printCompressReport(reports, comp, time.Since(start))
	return ctx.Err()
}

// compressOne runs one file through the compressor and hands the result to
// out, if any.
func compressOne(ctx context.Context, comp *compress.Compressor, out sink.Sink, path string, dest sink.Destination) (compress.Report, error) {
	in, err := source.Open(path)
	if err != nil {
		return compress.Report{}, err
	}
	logVerbose("compressing %s (%s, %s)", in.Name, in.MimeType, formatBytes(in.Size()))

	res, rep := comp.Compress(ctx, in)
	if out == nil {
		return rep, nil
	}
	rc, err := out.Upload(ctx, sink.Upload{
		File:       res,
		SourceName: in.Name,
		Report:     rep,
		Dest:       dest,
	})
	if err != nil {
		return rep, fmt.Errorf("store %s: %w", in.Name, err)
	}
	logVerbose("stored %s -> %s", in.Name, rc.Path)
	return rep, nil
}

func printCompressReport(reports []compress.Report, comp *compress.Compressor, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════╗")
	fmt.Println("║            imgshrink compress complete           ║")
	fmt.Println("╚══════════════════════════════════════════════════╝")
	fmt.Println()

	var in, out int64
	compressed := 0
	for _, r := range reports {
		in += r.OriginalSize
		out += r.FinalSize
		if r.Compressed() {
			compressed++
		}
	}
	ratio := float64(0)
	if in > 0 {
		ratio = float64(out) / float64(in) * 100
	}

	prof := comp.Profile()
	fmt.Printf("  Profile:     %s (%s, budget %s)\n", prof.Name, comp.Encoder().Format(), formatBytes(prof.Budget))
	fmt.Printf("  Files:       %d (%d re-encoded)\n", len(reports), compressed)
	fmt.Printf("  Input size:  %s\n", formatBytes(in))
	fmt.Printf("  Output size: %s\n", formatBytes(out))
	fmt.Printf("  Ratio:       %.1f%% of original\n", ratio)
	fmt.Printf("  Time:        %s\n", elapsed.Round(time.Millisecond))
	fmt.Println()

	for _, r := range reports {
		if r.Compressed() {
			fmt.Printf("    %-36s %8s → %8s  q=%.3f  %dx%d  (%d attempts)\n",
				truncKey(r.Name, 36),
				formatBytes(r.OriginalSize),
				formatBytes(r.FinalSize),
				r.Quality, r.Width, r.Height, r.Attempts,
			)
			continue
		}
		fmt.Printf("    %-36s %8s    kept      %s\n",
			truncKey(r.Name, 36), formatBytes(r.OriginalSize), r.Outcome())
	}
	fmt.Println()

	if !compressDryRun {
		fmt.Printf("  Manifest:    %s\n", filepath.Join(compressOutDir, manifest.FileName))
		fmt.Println()
	}
}
