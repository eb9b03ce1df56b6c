package cli

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/file"
	"live-quiz-service/internal/infra/memory"
	natsmirror "live-quiz-service/internal/infra/nats"
	pgloader "live-quiz-service/internal/infra/postgres"
	infraredis "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// newStartCmd builds the CLI subcommand to start the server.
func newStartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, err := questionLoader(cfg, pool)
	if err != nil {
		return err
	}
	// a broken bank is a startup problem, not something a room should discover
	bank, err := loader.LoadQuestions(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("questions", len(bank)).Msg("question bank loaded")

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	roomTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)
	codes := app.RandomCodes(rand.New(rand.NewSource(time.Now().UnixNano())))

	var (
		questions app.QuestionSource
		rooms     app.RoomRegistry
	)
	if redisClient != nil {
		questions = infraredis.NewQuestionRepository(redisClient, loader, questionTTL)
		rooms = infraredis.NewRoomRegistry(redisClient, codes, roomTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, questionTTL)
		rooms = memory.NewRoomRegistry(codes)
	}

	hub := transport.NewHub(transport.DefaultHubConfig())
	var events app.Transport = hub
	if cfg.NATS.URL != "" {
		natsCfg := natsmirror.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		if cfg.NATS.SubjectPrefix != "" {
			natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		}
		nc, err := natsmirror.Connect(natsCfg)
		if err != nil {
			return err
		}
		defer nc.Drain()
		events = natsmirror.NewMirror(hub, nc, natsCfg.SubjectPrefix)
		log.Info().Str("url", cfg.NATS.URL).Str("prefix", natsCfg.SubjectPrefix).Msg("mirroring room events to NATS")
	}

	service := app.NewGameService(app.Dependencies{
		Rooms:     rooms,
		Questions: questions,
		Transport: events,
	}, settings)

	router := transport.NewRouter(transport.RouterConfig{
		PublicURL:      cfg.Server.PublicURL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, service, transport.NewWSHandler(service, hub))

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go service.RunReaper(reaperCtx)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	case err := <-serveErr:
		log.Error().Err(err).Msg("failed to start server")
		return err
	}

	stopReaper()
	service.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// questionLoader prefers Postgres when configured and falls back to the bank file.
func questionLoader(cfg config.Config, pool *pgxpool.Pool) (memory.QuestionLoader, error) {
	if pool != nil {
		return pgloader.NewQuestionLoader(pool), nil
	}
	if cfg.Questions.File == "" {
		return nil, errors.New("no question source configured: set questions.file or postgres.url")
	}
	return file.NewQuestionLoader(cfg.Questions.File), nil
}
