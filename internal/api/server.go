package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nanobanana/supermarket/internal/config"
	"github.com/nanobanana/supermarket/internal/imagestore"
	"github.com/nanobanana/supermarket/internal/pipeline"
	"github.com/nanobanana/supermarket/internal/store"
)

// Server is the public JSON API plus the token-gated admin surface.
type Server struct {
	cfg      config.Config
	log      *slog.Logger
	accounts store.Store
	images   *imagestore.Store
	pipeline *pipeline.Service
	router   *chi.Mux
}

func NewServer(cfg config.Config, log *slog.Logger, accounts store.Store, images *imagestore.Store, pipe *pipeline.Service) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:      cfg,
		log:      log,
		accounts: accounts,
		images:   images,
		pipeline: pipe,
		router:   r,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Get("/transformations", s.handleTransformations)
		r.Post("/generate", s.handleGenerate)
		r.Post("/user/images", s.handleUserImages)
		r.Post("/save-image", s.handleSaveImage)
		r.Get("/images/{filename}", s.handleImage)
		r.Get("/download/{filename}", s.handleDownload)

		r.Post("/admin/login", s.handleAdminLogin)
		r.Group(func(protected chi.Router) {
			protected.Use(s.adminTokenMiddleware)
			protected.Get("/admin/users", s.handleAdminUsers)
			protected.Post("/admin/reset-uses", s.handleAdminResetUses)
		})
	})

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.cfg.RequestTimeout + 30*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("server shutdown error", "err", err)
		}
	}()

	s.log.Info("api listening", "addr", s.cfg.ListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("handler error", "err", err)
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
