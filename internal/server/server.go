// Package server exposes the corpus QA service over HTTP with a small JSON
// API: load a corpus, inspect its index, ask questions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rgale/corpusqa/internal/corpus"
	"github.com/rgale/corpusqa/internal/llm"
	"github.com/rgale/corpusqa/internal/query"
	"github.com/rgale/corpusqa/internal/record"
)

// maxUploadSize caps a corpus archive upload.
const maxUploadSize = 256 << 20

// Server wires the store, the loader, and the answering strategy behind
// the HTTP surface.
type Server struct {
	log      *slog.Logger
	store    *corpus.Store
	loader   *corpus.Loader
	strategy query.Strategy
}

// New creates a Server.
func New(log *slog.Logger, store *corpus.Store, loader *corpus.Loader, strategy query.Strategy) *Server {
	return &Server{
		log:      log,
		store:    store,
		loader:   loader,
		strategy: strategy,
	}
}

// Handler returns the routed HTTP handler, instrumented for tracing.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/load", s.handleLoad)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/records", s.handleRecords)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	return otelhttp.NewHandler(mux, "corpusqa")
}

// ListenAndServe serves the API until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type loadResponse struct {
	LoadID    string `json:"loadId"`
	Source    string `json:"source"`
	FilesSeen int    `json:"filesSeen"`
	Records   int    `json:"records"`
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"records": len(snap.Records),
		"loadId":  snap.LoadID,
	})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a non-empty path")
		return
	}

	snap, err := s.loader.LoadDir(r.Context(), req.Path)
	if err != nil {
		s.log.Error("corpus load failed", "path", req.Path, "error", err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("load corpus: %v", err))
		return
	}

	s.store.Replace(snap)
	writeJSON(w, http.StatusOK, loadResponse{
		LoadID:    snap.LoadID,
		Source:    snap.Source,
		FilesSeen: snap.FilesSeen,
		Records:   len(snap.Records),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("archive")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart form must carry a zip file under the archive field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
		return
	}

	snap, err := s.loader.LoadZip(r.Context(), data, header.Filename)
	if err != nil {
		s.log.Error("archive load failed", "file", header.Filename, "error", err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("load archive: %v", err))
		return
	}

	s.store.Replace(snap)
	writeJSON(w, http.StatusOK, loadResponse{
		LoadID:    snap.LoadID,
		Source:    snap.Source,
		FilesSeen: snap.FilesSeen,
		Records:   len(snap.Records),
	})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	entries := make([]record.IndexEntry, len(snap.Records))
	for i, rec := range snap.Records {
		entries[i] = record.NewIndexEntry(rec, record.DefaultPreviewLen)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loadId":  snap.LoadID,
		"records": entries,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a non-empty question")
		return
	}

	snap := s.store.Current()
	if snap.Empty() {
		writeError(w, http.StatusConflict, "no corpus is loaded; load one via /api/load or /api/upload first")
		return
	}

	res, err := s.strategy.Answer(r.Context(), snap, req.Question)
	if err != nil {
		s.log.Error("question failed", "strategy", s.strategy.Name(), "error", err)
		if errors.Is(err, llm.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, "the model is rate limiting requests; try again later")
			return
		}
		writeError(w, http.StatusBadGateway, "the model request failed; try again later")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
