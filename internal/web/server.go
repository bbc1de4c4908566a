package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vbonduro/restockr/internal/auth"
	"github.com/vbonduro/restockr/internal/service"
)

type Server struct {
	service     *service.AssistantService
	proxy       http.Handler
	router      chi.Router
	logger      *slog.Logger
	authSecret  string
	defaultUser string
}

// NewServer builds the JSON API. proxy serves POST /api/gemini and may be nil
// to leave the route unregistered. With an empty authSecret every request
// runs as defaultUser.
func NewServer(svc *service.AssistantService, proxy http.Handler, authSecret, defaultUser string, logger *slog.Logger) *Server {
	s := &Server{
		service:     svc,
		proxy:       proxy,
		router:      chi.NewRouter(),
		logger:      logger,
		authSecret:  authSecret,
		defaultUser: defaultUser,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if s.proxy != nil {
			r.Handle("/gemini", s.proxy)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.authSecret, s.defaultUser))

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", s.handleListInventory)
				r.Post("/", s.handleCreateItem)
				r.Put("/{id}", s.handleUpdateItem)
				r.Delete("/{id}", s.handleDeleteItem)
				r.Post("/{id}/use", s.handleRecordUsage)
			})

			r.Get("/history", s.handleListHistory)
			r.Get("/audit", s.handleListAudit)
			r.Get("/config", s.handleGetConfig)
			r.Patch("/config", s.handleUpdateConfig)

			r.Get("/cart", s.handleGetCart)
			r.Post("/forecast", s.handleForecast)
			r.Post("/purchases", s.handleApplyPurchases)
			r.Post("/checkout", s.handleCheckout)

			r.Post("/receipts", s.handleUploadReceipt)
			r.Get("/receipts/{key}", s.handleGetReceipt)
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
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
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
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
