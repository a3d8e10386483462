package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/quizroom/quizroom/internal/chat"
	"github.com/quizroom/quizroom/internal/dbconfig"
	"github.com/quizroom/quizroom/internal/gateway"
	"github.com/quizroom/quizroom/internal/identity"
	"github.com/quizroom/quizroom/internal/questions"
	"github.com/quizroom/quizroom/internal/quiz"
	"github.com/quizroom/quizroom/internal/relay"
	"github.com/quizroom/quizroom/internal/room"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, dbCfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create database pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	log.Info().Str("host", dbCfg.Host).Str("database", dbCfg.Database).Msg("connected to database")

	chatRepo := chat.NewRepository(pool)
	questionRepo := questions.NewRepository(pool)
	identityRepo := identity.NewRepository(pool)

	registry := room.NewRegistry()
	scheduler := quiz.NewScheduler(clockwork.NewRealClock())

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	go cm.Start(ctx)

	var eventRelay gateway.EventRelay
	if cfg.Relay.Enabled {
		relayCfg := relay.DefaultJetStreamConfig()
		if cfg.Relay.URL != "" {
			relayCfg.URL = cfg.Relay.URL
		}
		if cfg.Relay.Stream != "" {
			relayCfg.StreamName = cfg.Relay.Stream
		}
		if cfg.Relay.SubjectPrefix != "" {
			relayCfg.SubjectPrefix = cfg.Relay.SubjectPrefix
		}
		publisher, err := relay.NewJetStreamPublisher(relayCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start event relay")
		}
		defer publisher.Close()
		eventRelay = publisher
		log.Info().Str("stream", relayCfg.StreamName).Msg("event relay enabled")
	}

	coordinator := gateway.NewCoordinator(
		registry,
		questionRepo,
		chatRepo,
		identityRepo,
		scheduler,
		cm,
		eventRelay,
		gateway.Config{
			QuestionDuration:    cfg.QuestionDuration(),
			QuestionCount:       cfg.Quiz.QuestionCount,
			CollaboratorTimeout: 5 * time.Second,
		},
	)

	wsHandler := gateway.NewWebSocketHandler(cm, coordinator, identity.HeaderSource{})
	srv := setupServer(cfg.Server.Addr, wsHandler)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
