// Package server exposes the densifier over a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chain_of_density/generator"
	"chain_of_density/publisher"
	"chain_of_density/store"
)

// DefaultRequestTimeout bounds one chain run. A rate-limited step may wait a
// full transport backoff, so this is generous.
const DefaultRequestTimeout = 5 * time.Minute

type Server struct {
	densifier *generator.Densifier
	store     *store.Store
	logger    *slog.Logger
	timeout   time.Duration
}

func New(d *generator.Densifier, st *store.Store, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("densifier required")
	}
	if st == nil {
		return nil, errors.New("store required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{densifier: d, store: st, logger: logger, timeout: DefaultRequestTimeout}, nil
}

// SetTimeout overrides the per-request chain timeout; d <= 0 keeps the current one.
func (s *Server) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/summaries", s.handleCreate)
	mux.HandleFunc("GET /api/summaries", s.handleList)
	mux.HandleFunc("GET /api/summaries/{id}", s.handleGet)
	mux.HandleFunc("GET /summaries/{id}", s.handleReport)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return logMiddleware(s.logger, mux)
}

// --- Handlers ---

type createReq struct {
	ID        string `json:"id"`
	Article   string `json:"article"`
	Reference string `json:"reference"`
	Steps     int    `json:"steps"`
}

type chainResp struct {
	Chain *generator.Chain `json:"chain"`
	Final string           `json:"final,omitempty"`
	Error string           `json:"error,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Article) == "" {
		writeError(w, http.StatusBadRequest, errors.New("article is required"))
		return
	}
	if req.Steps < 0 || req.Steps > 10 {
		writeError(w, http.StatusBadRequest, errors.New("steps must be between 0 and 10"))
		return
	}
	article := generator.NewArticle(req.Article)
	article.Reference = req.Reference
	if req.ID != "" {
		article.ID = req.ID
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	chain, err := s.densifier.Summarize(ctx, article, req.Steps)
	if chain != nil {
		if perr := s.store.Put(context.WithoutCancel(ctx), chain); perr != nil {
			s.logger.Error("store chain", "chain", chain.ID, "error", perr)
		}
	}
	if err != nil {
		status := http.StatusBadGateway
		if chain == nil {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, chainResp{Chain: chain, Error: err.Error()})
		return
	}
	resp := chainResp{Chain: chain}
	if last, ok := chain.Last(); ok {
		resp.Final = last.Summary.Text
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	ids, err := s.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ids": ids})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	chain, ok := s.lookup(w, r)
	if !ok {
		return
	}
	resp := chainResp{Chain: chain, Error: chain.Err}
	if last, ok := chain.Last(); ok && chain.State == generator.StateDone {
		resp.Final = last.Summary.Text
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	chain, ok := s.lookup(w, r)
	if !ok {
		return
	}
	html, err := publisher.RenderHTML(chain)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*generator.Chain, bool) {
	chain, err := s.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return chain, true
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
