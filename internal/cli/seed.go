package cli

import (
	"context"
	"fmt"

	"ambient-quiz-service/internal/config"
	"ambient-quiz-service/internal/content"
	"ambient-quiz-service/internal/infra/postgres"
	redisstore "ambient-quiz-service/internal/infra/redis"
	"ambient-quiz-service/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewSeedCmd writes the bundled Ambient quiz into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the bundled Ambient quiz into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if migrateFirst {
				if err := runMigrations(ctx, cfg); err != nil {
					return err
				}
			}

			db, err := openBunDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			quiz := content.AmbientQuiz()
			if err := postgres.Seed(ctx, db, quiz); err != nil {
				return err
			}
			logging.WithContext(ctx).WithField("quiz_id", quiz.ID).Info("quiz seeded")
			return invalidateQuizCache(ctx, cfg, quiz.ID)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", true, "apply migrations before seeding")
	return cmd
}

// invalidateQuizCache drops the shared Redis copy of a re-seeded quiz so
// running servers stop serving the old version before its TTL runs out.
func invalidateQuizCache(ctx context.Context, cfg config.Config, quizID string) error {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	// only the cache key is touched, so no loader is needed
	if err := redisstore.NewQuizRepository(client, nil, 0).Invalidate(ctx, quizID); err != nil {
		return fmt.Errorf("invalidate cached quiz %q: %w", quizID, err)
	}
	logging.WithContext(ctx).WithField("quiz_id", quizID).Info("quiz cache invalidated")
	return nil
}
