package cli

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quizmaster/internal/app"
	"quizmaster/internal/config"
	"quizmaster/internal/domain"
	"quizmaster/internal/infra/memory"
	inframongo "quizmaster/internal/infra/mongo"
	"quizmaster/internal/infra/postgres"
	"quizmaster/internal/infra/rabbitmq"
	infraredis "quizmaster/internal/infra/redis"
	transport "quizmaster/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Printf("close: %v", err)
			}
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, redisClient)
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestionBanks())
	var challenges app.ChallengeRepository = memory.NewChallengeStore()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = postgres.NewQuestionLoader(pool)

		db := openBun(cfg.Postgres.URL)
		closers = append(closers, db)
		challenges = postgres.NewChallengeRepository(db)
	}

	questionTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = infraredis.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, questionTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = infraredis.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	var progress app.ProgressRepository
	switch {
	case cfg.Mongo.URI != "":
		client, db, err := inframongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("disconnect mongo: %v", err)
			}
		}()
		store := inframongo.NewProgressStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return err
		}
		progress = store
	case redisClient != nil:
		progress = infraredis.NewProgressStore(redisClient)
	default:
		progress = memory.NewProgressStore()
	}

	publisher, err := rabbitmq.NewOutcomePublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		return err
	}
	closers = append(closers, publisher)

	defaultDuration := config.TTLDuration(cfg.Quiz.DefaultDuration, app.DefaultDurationSeconds*time.Second)
	service := app.NewSessionService(sessions, questions,
		app.WithProgress(progress),
		app.WithChallenges(challenges),
		app.WithPublisher(publisher),
		app.WithFeedbackDelay(config.TTLDuration(cfg.Quiz.FeedbackDelay, 1200*time.Millisecond)),
		app.WithDefaultDuration(int(defaultDuration/time.Second)),
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(transport.NewWSHandler(service), transport.NewPlayerHandler(service)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sampleQuestionBanks keeps the server playable without a database; swap in the Postgres loader in production.
func sampleQuestionBanks() map[string][]domain.Question {
	return map[string][]domain.Question{
		"general": {
			{
				Text:        "What is 2 + 2?",
				Options:     []string{"3", "4", "5", "22"},
				Correct:     1,
				Explanation: "Two pairs make four.",
			},
			{
				Text:        "Which planet is known as the Red Planet?",
				Options:     []string{"Venus", "Jupiter", "Mars", "Mercury"},
				Correct:     2,
				Explanation: "Iron oxide on its surface gives Mars its colour.",
			},
			{
				Text:      "What is the largest ocean on Earth?",
				Options:   []string{"Atlantic", "Indian", "Arctic", "Pacific"},
				Correct:   3,
				Reference: "https://en.wikipedia.org/wiki/Pacific_Ocean",
			},
		},
	}
}
