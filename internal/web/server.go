package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vbonduro/renobudget/internal/imagestore"
	"github.com/vbonduro/renobudget/internal/metrics"
	"github.com/vbonduro/renobudget/internal/service"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	service *service.RenovationService
	images  imagestore.ImageStore
	router  chi.Router
	logger  *slog.Logger
}

// NewServer builds the JSON API. images receives files posted to the image
// mirror endpoint and may be nil, in which case that endpoint is disabled.
func NewServer(svc *service.RenovationService, images imagestore.ImageStore, logger *slog.Logger) *Server {
	s := &Server{
		service: svc,
		images:  images,
		router:  chi.NewRouter(),
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/diagnostics", s.handleDiagnostics)
		r.Get("/chat/status", s.handleChatStatus)
		r.Get("/images/*", s.handleGetImage)
		r.Post("/log-error", s.handleLogError)
		r.Post("/upload-image", s.handleUploadImage)

		r.Get("/rooms", s.handleListRooms)
		r.Route("/rooms/{room}", func(r chi.Router) {
			r.Get("/", s.handleGetRoom)
			r.Get("/items", s.handleItemsByType)
			r.Post("/items", s.handleAddItem)
			r.Patch("/items/{id}", s.handleUpdateItem)
			r.Delete("/items/{id}", s.handleDeleteItem)
			r.Put("/costs", s.handleUpdateCosts)
			r.Get("/totals", s.handleTotals)
			r.Post("/import", s.handleImport)
			r.Post("/sample", s.handleLoadSample)
			r.Get("/export.xlsx", s.handleExport)
			r.Get("/snapshots", s.handleSnapshots)
			r.Get("/chat", s.handleChatHistory)
			r.Post("/chat", s.handleSendMessage)
			r.Delete("/chat", s.handleClearChat)
			r.Post("/advice", s.handleAdvice)
		})
	})
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self' data:; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.router)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
