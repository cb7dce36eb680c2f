// Package server exposes the compressor over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AnyUserName/imgshrink/internal/compress"
	"github.com/AnyUserName/imgshrink/internal/sink"
	"github.com/AnyUserName/imgshrink/internal/source"
)

// DefaultMaxBody caps request bodies.
const DefaultMaxBody = 200 << 20

// Config holds server parameters.
type Config struct {
	MaxBody int64     // bytes; 0 = DefaultMaxBody
	Sink    sink.Sink // nil disables /v1/upload
	Logger  *log.Logger
}

// Server handles compress and upload requests. Images are processed one at
// a time; concurrent requests wait their turn.
type Server struct {
	comp *compress.Compressor
	cfg  Config
	log  *log.Logger
	slot chan struct{}
}

// New creates a Server around comp.
func New(comp *compress.Compressor, cfg Config) *Server {
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = DefaultMaxBody
	}
	l := cfg.Logger
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	return &Server{comp: comp, cfg: cfg, log: l, slot: make(chan struct{}, 1)}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/compress", s.handleCompress)
		r.Post("/upload", s.handleUpload)
	})
	return r
}

type healthResponse struct {
	Status    string    `json:"status"`
	Profile   string    `json:"profile"`
	Format    string    `json:"format"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Profile:   s.comp.Profile().Name,
		Format:    s.comp.Encoder().Format(),
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readFile(w, r)
	if !ok {
		return
	}
	out, rep, err := s.compress(r.Context(), in)
	if err != nil {
		http.Error(w, "request canceled", http.StatusServiceUnavailable)
		return
	}

	setReportHeaders(w.Header(), rep)
	w.Header().Set("Content-Type", out.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Name}))
	w.WriteHeader(http.StatusOK)
	w.Write(out.Data)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Sink == nil {
		http.Error(w, "no upload sink configured", http.StatusServiceUnavailable)
		return
	}
	dest, err := destinationFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	in, ok := s.readFile(w, r)
	if !ok {
		return
	}
	out, rep, err := s.compress(r.Context(), in)
	if err != nil {
		http.Error(w, "request canceled", http.StatusServiceUnavailable)
		return
	}

	rc, err := s.cfg.Sink.Upload(r.Context(), sink.Upload{
		File:       out,
		SourceName: in.Name,
		Report:     rep,
		Dest:       dest,
	})
	if err != nil {
		s.log.Printf("upload %s: %v", out.Name, err)
		http.Error(w, "upload failed", http.StatusBadGateway)
		return
	}
	setReportHeaders(w.Header(), rep)
	writeJSON(w, http.StatusCreated, rc)
}

// compress waits for the processing slot, then runs the compressor.
func (s *Server) compress(ctx context.Context, in compress.File) (compress.File, compress.Report, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return in, compress.Report{}, ctx.Err()
	}
	defer func() { <-s.slot }()

	out, rep := s.comp.Compress(ctx, in)
	s.log.Printf("%s", rep)
	return out, rep, nil
}

func (s *Server) readFile(w http.ResponseWriter, r *http.Request) (compress.File, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, fmt.Sprintf("body exceeds %d bytes", tooBig.Limit), http.StatusRequestEntityTooLarge)
			return compress.File{}, false
		}
		http.Error(w, "read body failed", http.StatusBadRequest)
		return compress.File{}, false
	}
	if len(data) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return compress.File{}, false
	}

	name := r.Header.Get("X-Filename")
	if name == "" {
		name = r.URL.Query().Get("name")
	}
	if name == "" {
		name = "upload"
	}
	declared := r.Header.Get("Content-Type")
	if declared == "application/octet-stream" {
		declared = ""
	}
	return source.FromBytes(name, declared, data), true
}

func destinationFrom(r *http.Request) (sink.Destination, error) {
	q := r.URL.Query()
	d := sink.Destination{Channel: q.Get("channel")}
	if p := q.Get("position"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return d, fmt.Errorf("invalid position %q", p)
		}
		d.Position = n
	}
	return d, nil
}

func setReportHeaders(h http.Header, rep compress.Report) {
	h.Set("X-Imgshrink-Outcome", rep.Outcome())
	h.Set("X-Imgshrink-Original-Size", strconv.FormatInt(rep.OriginalSize, 10))
	h.Set("X-Imgshrink-Attempts", strconv.Itoa(rep.Attempts))
	if rep.Compressed() {
		h.Set("X-Imgshrink-Quality", strconv.FormatFloat(rep.Quality, 'f', 3, 64))
		h.Set("X-Imgshrink-Resolution", fmt.Sprintf("%dx%d", rep.Width, rep.Height))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
