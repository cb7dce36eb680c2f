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

	"github.com/AnyUserName/imgshrink/internal/sink"
	"github.com/AnyUserName/imgshrink/internal/watch"
)

var (
	watchOutDir   string
	watchChannel  string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Compress images as they appear in a directory",
	Long: `Watches a directory (not recursively) and compresses every image file
written into it once the file has been quiet for the debounce interval.
Results are stored in the output directory like the compress command.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutDir, "out", "o", "./imgshrink_out", "output directory")
	watchCmd.Flags().StringVar(&watchChannel, "channel", "", "destination channel recorded in the manifest")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a file is handled")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	absInput, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	absOutput, err := filepath.Abs(watchOutDir)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	// Stored files would be picked up again.
	if absInput == absOutput {
		return fmt.Errorf("output directory must differ from the watched directory")
	}

	comp, err := newCompressor()
	if err != nil {
		return err
	}
	out, err := sink.NewDirSink(absOutput, comp.Profile().Name)
	if err != nil {
		return err
	}

	w, err := watch.New(absInput, watchDebounce, newLogger())
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "[imgshrink] watching %s -> %s\n", absInput, absOutput)
	position := 0
	return w.Run(ctx, func(ctx context.Context, path string) error {
		rep, err := compressOne(ctx, comp, out, path, sink.Destination{
			Channel:  watchChannel,
			Position: position,
		})
		if err != nil {
			return err
		}
		position++
		fmt.Println(rep.String())
		return nil
	})
}
