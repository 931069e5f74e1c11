package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/justestif/go-playlist-sessions/internal/auth"
	"github.com/justestif/go-playlist-sessions/internal/logging"
	"github.com/justestif/go-playlist-sessions/internal/playlist"
	"github.com/justestif/go-playlist-sessions/internal/users"
)

// Defaults used when ServerConfig leaves a field zero.
const (
	DefaultAddr         = "127.0.0.1:8888"
	DefaultSessionTTL   = 24 * time.Hour
	DefaultRefreshEvery = 10 * time.Second
	DefaultRefreshBurst = 3
	DefaultSweepEvery   = 10 * time.Minute
)

// ServerConfig holds server configuration and collaborators.
type ServerConfig struct {
	Addr          string
	FrontendURL   string // where a finished login lands
	SessionSecret string
	SessionTTL    time.Duration
	RefreshEvery  time.Duration // forced refresh rate per session
	RefreshBurst  int
	SweepEvery    time.Duration // how often expired session state is removed

	Exchanger   *auth.Exchanger
	Refresher   *auth.Refresher
	Credentials auth.CredentialStore
	Sessions    SessionManager
	Users       users.Resolver
	Profiles    map[auth.Provider]auth.ProfileFetcher
	Playlists   *playlist.Service
	Tracks      TrackSource
	Logger      *log.Logger
}

// Server is the HTTP server for the API.
type Server struct {
	router     chi.Router
	server     *http.Server
	handlers   *Handlers
	sweepEvery time.Duration
	logger     *log.Logger
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Exchanger == nil || cfg.Refresher == nil || cfg.Credentials == nil ||
		cfg.Sessions == nil || cfg.Users == nil || cfg.Playlists == nil || cfg.Tracks == nil {
		return nil, errors.New("server: missing collaborator")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("server: session secret is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = DefaultRefreshEvery
	}
	if cfg.RefreshBurst <= 0 {
		cfg.RefreshBurst = DefaultRefreshBurst
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = DefaultSweepEvery
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "/"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	secure := false
	if u, err := url.Parse(cfg.FrontendURL); err == nil && u.Scheme == "https" {
		secure = true
	}

	handlers := &Handlers{
		exchanger:   cfg.Exchanger,
		refresher:   cfg.Refresher,
		credentials: cfg.Credentials,
		sessions:    cfg.Sessions,
		cookies:     newCookies(cfg.SessionSecret, cfg.SessionTTL, secure),
		users:       cfg.Users,
		profiles:    cfg.Profiles,
		playlists:   cfg.Playlists,
		tracks:      cfg.Tracks,
		limiter:     newRefreshLimiter(cfg.RefreshEvery, cfg.RefreshBurst),
		sessionTTL:  cfg.SessionTTL,
		frontendURL: cfg.FrontendURL,
		logger:      cfg.Logger,
	}

	s := &Server{
		router:     chi.NewRouter(),
		handlers:   handlers,
		sweepEvery: cfg.SweepEvery,
		logger:     cfg.Logger,
	}

	// Configure middleware
	s.setupMiddleware()

	// Configure routes
	s.setupRoutes()

	// Create HTTP server
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logging.Requests(s.logger))
	s.router.Use(middleware.Recoverer)
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes() {
	h := s.handlers

	// Auth routes
	for _, p := range auth.Providers {
		s.router.Get("/auth/"+string(p), h.Login(p))
		s.router.Get("/auth/"+string(p)+"/callback", h.Callback(p))
	}
	s.router.Post("/auth/logout", h.Logout)

	s.router.Group(func(r chi.Router) {
		r.Use(h.RequireSession)

		r.Get("/me", h.Me)
		r.Get("/auth/spotify/refresh-token", h.ForceRefresh)

		// Playlists
		r.Post("/draft-playlist", h.DraftPlaylist)
		r.Post("/save-playlist", h.SavePlaylist)
		r.Get("/myplaylist/{id}", h.CurrentPlaylist)
		r.Put("/myplaylist/{id}", h.RenamePlaylist)
		r.Delete("/myplaylist/{id}", h.DeletePlaylist)
		r.Get("/playlists/{id}", h.GetPlaylist)

		// Routes that call Spotify with the session's token
		r.Group(func(r chi.Router) {
			r.Use(h.RequireProvider(auth.ProviderSpotify))

			r.Get("/auth/spotify/token", h.SpotifyToken)
			r.Get("/tracks/{trackID}", h.Track)
		})
	})
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", "http://"+s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and shuts it down gracefully when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go s.sweepLoop(ctx)

	// Wait for cancellation or error
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// sweepLoop removes expired session state until ctx is cancelled.
func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.handlers.sweep(ctx, now)
		}
	}
}
