package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"reading-quiz-service/internal/config"
	"reading-quiz-service/internal/infra/postgres"
	redisinfra "reading-quiz-service/internal/infra/redis"
	"reading-quiz-service/internal/logging"
)

// NewSeedCmd loads a YAML question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var bankPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a question bank into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, bankPath)
		},
	}
	cmd.Flags().StringVar(&bankPath, "file", "config/questions.yaml", "path to the YAML question bank")
	return cmd
}

func runSeed(ctx context.Context, configPath, bankPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}
	bank, err := postgres.LoadBank(bankPath)
	if err != nil {
		return err
	}

	db := postgres.OpenDB(cfg.Postgres.URL)
	defer db.Close()

	n, err := postgres.Seed(ctx, db, bank)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	log.WithField("documents", n).Info("question bank loaded")

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		if err := redisinfra.NewQuestionCache(client, nil, 0).Invalidate(ctx); err != nil {
			log.WithError(err).Warn("failed to invalidate cached questions")
		}
	}
	return nil
}
