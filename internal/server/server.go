// Package server exposes the read API: the threaded feed, a health probe,
// and Prometheus metrics. It owns no ingestion logic.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/opencouncil/agendalens/internal/civic"
	"github.com/opencouncil/agendalens/internal/sources"
	"github.com/opencouncil/agendalens/internal/store"
	"github.com/opencouncil/agendalens/internal/thread"
)

// Server serves the read API over chi.
type Server struct {
	store store.Store
	log   *zap.Logger
}

// New builds a Server.
func New(st store.Store, log *zap.Logger) *Server {
	return &Server{store: st, log: log}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/feed", s.handleFeed)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// feedResponse is the threaded feed for one municipality: issue groups
// first, then items that belong to no group. No item appears in both.
type feedResponse struct {
	Municipality civic.Municipality `json:"municipality"`
	Groups       []civic.IssueGroup `json:"groups"`
	Items        []civic.AgendaItem `json:"items"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("municipality")
	if code == "" {
		writeError(w, http.StatusBadRequest, "municipality query parameter is required")
		return
	}
	if _, ok := sources.ByCode(code); !ok {
		writeError(w, http.StatusNotFound, "unknown municipality")
		return
	}

	muni, err := s.store.MunicipalityByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown municipality")
			return
		}
		s.serverError(w, "lookup municipality", err)
		return
	}

	items, err := s.store.FeedItems(r.Context(), muni.ID)
	if err != nil {
		s.serverError(w, "load feed items", err)
		return
	}

	groups, standalone := thread.Thread(items)
	if groups == nil {
		groups = []civic.IssueGroup{}
	}
	if standalone == nil {
		standalone = []civic.AgendaItem{}
	}

	writeJSON(w, http.StatusOK, feedResponse{
		Municipality: muni,
		Groups:       groups,
		Items:        standalone,
	})
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.log.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
