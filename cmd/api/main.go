package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/torhovland/segmentor/internal/api"
	"github.com/torhovland/segmentor/internal/auth"
	"github.com/torhovland/segmentor/internal/config"
	"github.com/torhovland/segmentor/internal/domain"
	"github.com/torhovland/segmentor/internal/events"
	"github.com/torhovland/segmentor/internal/observability"
	persistence "github.com/torhovland/segmentor/internal/persistence/postgres"
	"github.com/torhovland/segmentor/internal/session"
	"github.com/torhovland/segmentor/internal/strava"
	httptransport "github.com/torhovland/segmentor/internal/transport/http"
)

const storedGaugeInterval = time.Minute

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg(".env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger = newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	if cfg.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	var notifier session.Notifier = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.SyncEventsTopic)
		defer publisher.Close()
		notifier = publisher
	}

	source := strava.NewClient(cfg.StravaAPIBaseURL,
		strava.WithPageSize(cfg.StravaPageSize),
		strava.WithTimeout(cfg.FetchTimeout),
	)
	runner := session.NewRunner(source, repo,
		session.WithLogger(logger),
		session.WithFreshnessMargin(cfg.FreshnessMargin),
		session.WithNotifier(notifier),
	)

	authenticator := strava.NewAuthenticator(strava.AuthConfig{
		ClientID:     cfg.StravaClientID,
		ClientSecret: cfg.StravaClientSecret,
		RedirectURL:  cfg.StravaRedirectURL,
		AuthURL:      cfg.StravaAuthURL,
		TokenURL:     cfg.StravaTokenURL,
	}, &http.Client{Timeout: 15 * time.Second})
	states := auth.NewStateSigner(auth.Config{
		Secret: cfg.StateSecret,
		Issuer: cfg.StateIssuer,
		TTL:    cfg.StateTTL,
	})

	handler := api.NewHandler(domain.NewService(repo), runner, authenticator, states, api.Options{
		IndexPath:      cfg.IndexPath(),
		StaticDir:      cfg.StaticDir,
		SecureCookies:  cfg.Environment == config.EnvironmentProduction,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger).WithPinger(repo)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:           cfg.HTTPAddress,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}, handler.Router())
	// Request contexts, including those of hijacked websocket sessions, end on shutdown.
	server.BaseContext = func(net.Listener) context.Context { return ctx }

	logger.Info().
		Str("environment", string(cfg.Environment)).
		Str("static_dir", cfg.StaticDir).
		Msg("starting segmentor")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return httptransport.Serve(groupCtx, server, 15*time.Second, logger)
	})
	group.Go(func() error {
		return observability.RunStoredGauge(groupCtx, repo, storedGaugeInterval, logger)
	})

	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("segmentor stopped with error")
		return
	}
	logger.Info().Msg("segmentor stopped")
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Environment == config.EnvironmentDevelopment {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", "segmentor").Logger()
}
