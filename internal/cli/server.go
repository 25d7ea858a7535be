package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"reading-quiz-service/internal/app"
	"reading-quiz-service/internal/auth"
	"reading-quiz-service/internal/config"
	"reading-quiz-service/internal/domain"
	"reading-quiz-service/internal/evaluation"
	"reading-quiz-service/internal/infra/memory"
	"reading-quiz-service/internal/infra/postgres"
	redisinfra "reading-quiz-service/internal/infra/redis"
	"reading-quiz-service/internal/logging"
	transport "reading-quiz-service/internal/transport/http"
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
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var (
		questionRepo app.QuestionRepository = memory.NewStaticQuestionRepository(sampleQuestions())
		userRepo     app.UserRepository     = memory.NewUserStore()
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		questionRepo = postgres.NewQuestionLoader(pool)

		db := postgres.OpenDB(cfg.Postgres.URL)
		defer db.Close()
		userRepo = postgres.NewUserStore(db)
	} else {
		logger.Warn("postgres not configured, using built-in sample questions and in-memory accounts")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	loader := app.NewBulkLoader(questionRepo)
	var questions app.QuestionSource
	if redisClient != nil {
		questions = redisinfra.NewQuestionCache(redisClient, loader, quizTTL)
	} else {
		questions = memory.NewQuestionCache(loader, quizTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	evalTimeout := config.TTLDuration(cfg.Evaluation.Timeout, 30*time.Second)
	users := app.NewUserService(userRepo)
	service := app.NewQuizService(store, app.Dependencies{
		Questions: questions,
		Text: evaluation.NewTextClient(evaluation.Options{
			URL:         cfg.Evaluation.TextURL,
			Timeout:     evalTimeout,
			MaxAttempts: cfg.Evaluation.MaxAttempts,
			Logger:      logger.WithField("component", "text-eval"),
		}),
		Audio: evaluation.NewAudioClient(evaluation.Options{
			URL:         cfg.Evaluation.AudioURL,
			Timeout:     evalTimeout,
			MaxAttempts: cfg.Evaluation.MaxAttempts,
			Logger:      logger.WithField("component", "audio-eval"),
		}),
		Scores: users,
		Logger: logger,
	}, users)

	handler := transport.NewRouter(transport.RouterConfig{
		Questions:   questions,
		Users:       users,
		Quiz:        service,
		Tokens:      auth.NewTokenService(cfg.Auth.Secret, config.TTLDuration(cfg.Auth.TokenTTL, 8*time.Hour)),
		Logger:      logger,
		CORSOrigins: cfg.CORS.Origins,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.WithField("port", finalPort).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server...")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions is the built-in bank used when no database is configured.
func sampleQuestions() domain.QuestionSet {
	return domain.QuestionSet{
		MultipleChoice: []domain.MultipleChoiceItem{
			domain.NormalizeMultipleChoice(domain.Document{
				"_id":            "qcm-1",
				"source_text":    "Tom wakes up at seven. He eats breakfast and walks to school with his sister.",
				"question":       "How does Tom get to school?",
				"option A":       "By bus",
				"option B":       "On foot",
				"option C":       "By car",
				"correct_option": "B",
			}),
		},
		FreeText: []domain.FreeTextItem{
			domain.NormalizeFreeText(domain.Document{
				"_id":        "input-1",
				"question":   "Why does Tom walk with his sister?",
				"input_text": "Tom walks to school with his sister because their parents leave early for work.",
			}),
		},
		Audio: []domain.AudioItem{
			domain.NormalizeAudio(domain.Document{
				"_id":        "audio-1",
				"texte":      "The sun rises over the quiet village.",
				"niveau":     "A2",
				"difficulty": "easy",
			}),
		},
	}
}
