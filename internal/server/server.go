// Package server exposes the fieldforms services over HTTP: a JSON API
// under /api, HTML previews of entry forms, CSV and JSON exports, and a
// websocket feed of submission events.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/internal/app"
)

// Config holds server settings.
type Config struct {
	Addr          string
	SessionSecret string
	AdminKey      string
	TokenTTL      time.Duration
	SecureCookies bool
}

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

const shutdownTimeout = 10 * time.Second

// Server is the HTTP surface over an App.
type Server struct {
	app     *app.App
	cfg     Config
	tokens  *Tokens
	cookies *sessions.CookieStore
	feed    *Feed
	logger  *zap.Logger
	router  chi.Router
}

// New builds the router. The feed subscribes to the app's event bus.
func New(a *app.App, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.SessionSecret == "" {
		logger.Warn("no session secret configured, tokens will not survive a restart")
		cfg.SessionSecret = randomSecret()
	}
	s := &Server{
		app:     a,
		cfg:     cfg,
		tokens:  NewTokens(cfg.SessionSecret, cfg.TokenTTL),
		cookies: newCookieStore(cfg.SessionSecret, cfg.TokenTTL, cfg.SecureCookies),
		logger:  logger,
	}
	s.feed = NewFeed(logger.Named("feed"))
	a.Events.Subscribe("websocket-feed", s.feed.Publish)
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestLogger(s.logger))
	r.Use(s.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login/agent", s.handleAgentLogin)
		r.Post("/login/admin", s.handleAdminLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/templates", s.handleTemplates)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/session", s.handleSession)
			r.Get("/feed", s.handleFeed)

			r.Route("/fields", func(r chi.Router) {
				r.Get("/", s.handleListFields)
				r.Get("/tree", s.handleFieldTree)
				r.Get("/{id}", s.handleGetField)
				r.With(s.requireAdmin).Post("/", s.handleCreateField)
				r.With(s.requireAdmin).Put("/{id}", s.handleUpdateField)
				r.With(s.requireAdmin).Delete("/{id}", s.handleDeleteField)
			})

			r.Route("/agents", func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/", s.handleListAgents)
				r.Post("/", s.handleCreateAgent)
				r.Get("/{id}", s.handleGetAgent)
				r.Delete("/{id}", s.handleDeleteAgent)
			})

			r.Route("/forms", func(r chi.Router) {
				r.Get("/", s.handleListForms)
				r.With(s.requireAdmin).Post("/", s.handlePublishForm)
				r.With(s.requireAdmin).Post("/import", s.handleImportForm)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetForm)
					r.With(s.requireAdmin).Delete("/", s.handleDeleteForm)
					r.Get("/widgets", s.handleFormWidgets)
					r.Get("/preview", s.handleFormPreview)
					r.Get("/structure", s.handleFormStructure)
					r.Post("/submissions", s.handleSubmit)
					r.Get("/submissions", s.handleListFormSubmissions)
					r.With(s.requireAdmin).Get("/export.csv", s.handleExportCSV)
				})
			})

			r.Route("/submissions", func(r chi.Router) {
				r.Get("/", s.handleListSubmissions)
				r.Get("/{id}", s.handleGetSubmission)
			})

			r.With(s.requireAdmin).Get("/export", s.handleExportAll)
			r.With(s.requireAdmin).Get("/report", s.handleReport)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.feed.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
