// Package server exposes a report over HTTP: the rendered document at
// the root and a small JSON API for its sections.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/cwbudde/algo-meeg/report"
)

// Server serves one report.
type Server struct {
	report *report.Report
	logger *slog.Logger
	router chi.Router
}

// New wires the routes. A nil logger falls back to slog.Default.
func New(rep *report.Report, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{report: rep, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/sections", s.handleSections)
		r.Get("/sections/{id}", s.handleSection)
		r.Get("/tags", s.handleTags)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.report.Render(w); err != nil {
		s.logger.Error("render failed", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	sections := s.report.Sections()
	if tag := r.URL.Query().Get("tag"); tag != "" {
		filtered := sections[:0]
		for _, sec := range sections {
			for _, t := range sec.Tags {
				if t == tag {
					filtered = append(filtered, sec)
					break
				}
			}
		}
		sections = filtered
	}
	render.JSON(w, r, sections)
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	sec, err := s.report.Section(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, report.ErrNoSection) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "no such section"})
			return
		}
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}

	render.JSON(w, r, struct {
		*report.Section
		HTML string `json:"html"`
	}{Section: sec, HTML: sec.HTML()})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.report.Tags())
}

// ListenAndServe blocks until ctx is canceled or the listener fails,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving report", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
