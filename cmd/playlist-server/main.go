// Command playlist-server runs the playlist sessions API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/justestif/go-playlist-sessions/internal/auth"
	"github.com/justestif/go-playlist-sessions/internal/config"
	"github.com/justestif/go-playlist-sessions/internal/db"
	"github.com/justestif/go-playlist-sessions/internal/logging"
	"github.com/justestif/go-playlist-sessions/internal/playlist"
	"github.com/justestif/go-playlist-sessions/internal/spotify"
	"github.com/justestif/go-playlist-sessions/internal/users"
	"github.com/justestif/go-playlist-sessions/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "playlist-server",
		Usage: "Serve playlist sessions backed by Google and Spotify sign-in",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			pruneCommand(),
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func databaseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "database-url",
		Usage:    "PostgreSQL connection string",
		Sources:  cli.EnvVars("DATABASE_URL"),
		Required: true,
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP server",
		Flags:  []cli.Flag{configFlag()},
		Action: serve,
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Flags: []cli.Flag{databaseFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			database, err := db.New(ctx, cmd.String("database-url"))
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer database.Close()

			applied, err := database.Migrate(ctx)
			if err != nil {
				return err
			}
			logging.New(os.Stderr, config.DefaultLogLevel).Info("migrations applied", "count", applied)
			return nil
		},
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete expired sessions and their credentials",
		Flags: []cli.Flag{databaseFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			database, err := db.New(ctx, cmd.String("database-url"))
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer database.Close()

			removed, err := database.Sessions().DeleteExpired(ctx)
			if err != nil {
				return fmt.Errorf("pruning sessions: %w", err)
			}
			logging.New(os.Stderr, config.DefaultLogLevel).Info("expired sessions removed", "count", removed)
			return nil
		},
	}
}

// stores is the persistence backing one server instance.
type stores struct {
	credentials auth.CredentialStore
	sessions    web.SessionManager
	users       users.Resolver
	playlists   playlist.Repository
	close       func()
}

func memoryStores(cfg *config.Config) *stores {
	return &stores{
		credentials: auth.NewMemoryCredentialStore(),
		sessions:    web.NewSessionStore(cfg.Session.TTL.Duration),
		users:       users.NewMemoryResolver(),
		playlists:   playlist.NewMemoryRepository(),
		close:       func() {},
	}
}

func postgresStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*stores, error) {
	database, err := db.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	applied, err := database.Migrate(ctx)
	if err != nil {
		database.Close()
		return nil, err
	}
	if applied > 0 {
		logger.Info("migrations applied", "count", applied)
	}
	return &stores{
		credentials: auth.NewDBCredentialStore(database),
		sessions:    web.NewDBSessionStore(database, cfg.Session.TTL.Duration),
		users:       users.NewDBResolver(database),
		playlists:   playlist.NewDBRepository(database),
		close:       database.Close,
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level)

	var st *stores
	if cfg.Database.URL == "" {
		logger.Warn("no database configured, using in-memory stores")
		st = memoryStores(cfg)
	} else {
		st, err = postgresStores(ctx, cfg, logger)
		if err != nil {
			return err
		}
	}
	defer st.close()

	exchanger := auth.NewExchanger(map[auth.Provider]*oauth2.Config{
		auth.ProviderGoogle: auth.GoogleConfig(auth.ClientConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURI,
		}),
		auth.ProviderSpotify: auth.SpotifyConfig(auth.ClientConfig{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RedirectURL:  cfg.Spotify.RedirectURI,
		}),
	})
	refresher := auth.NewRefresher(st.credentials, exchanger,
		auth.WithExpiryMargin(cfg.Auth.ExpiryMargin.Duration),
		auth.WithLogger(logger.WithPrefix("auth")),
	)
	spotifyAPI := spotify.Factory{}

	server, err := web.NewServer(web.ServerConfig{
		Addr:          cfg.Server.Addr,
		FrontendURL:   cfg.Server.FrontendURL,
		SessionSecret: cfg.Session.Secret,
		SessionTTL:    cfg.Session.TTL.Duration,
		RefreshEvery:  cfg.Auth.RefreshEvery.Duration,
		RefreshBurst:  cfg.Auth.RefreshBurst,
		Exchanger:     exchanger,
		Refresher:     refresher,
		Credentials:   st.credentials,
		Sessions:      st.sessions,
		Users:         st.users,
		Profiles: map[auth.Provider]auth.ProfileFetcher{
			auth.ProviderGoogle:  auth.GoogleProfiles{},
			auth.ProviderSpotify: spotifyAPI,
		},
		Playlists: playlist.NewService(st.playlists, playlist.WithLogger(logger.WithPrefix("playlist"))),
		Tracks:    spotifyAPI,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
