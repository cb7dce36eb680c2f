package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgshrink/internal/server"
	"github.com/AnyUserName/imgshrink/internal/sink"
)

var (
	serveAddr    string
	serveOutDir  string
	serveMaxBody int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the compressor over HTTP",
	Long: `Starts an HTTP server:

  POST /v1/compress   body is the image; responds with the chosen file
  POST /v1/upload     compresses and stores the file (requires --out)
  GET  /healthz

Requests are processed one image at a time.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVarP(&serveOutDir, "out", "o", "", "directory for /v1/upload (empty disables uploads)")
	serveCmd.Flags().Int64Var(&serveMaxBody, "max-body", server.DefaultMaxBody, "largest accepted request body in bytes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	comp, err := newCompressor()
	if err != nil {
		return err
	}

	cfg := server.Config{MaxBody: serveMaxBody, Logger: newLogger()}
	if serveOutDir != "" {
		abs, err := filepath.Abs(serveOutDir)
		if err != nil {
			return fmt.Errorf("resolve output path: %w", err)
		}
		ds, err := sink.NewDirSink(abs, comp.Profile().Name)
		if err != nil {
			return err
		}
		cfg.Sink = ds
		logVerbose("uploads: %s", abs)
	}

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           server.New(comp, cfg).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "[imgshrink] listening on %s\n", serveAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	fmt.Fprintln(os.Stderr, "[imgshrink] shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
