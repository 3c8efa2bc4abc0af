package integration

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"image/png"
	"strings"
	"testing"
	"time"

	"ambient-quiz-service/internal/app"
	"ambient-quiz-service/internal/content"
	"ambient-quiz-service/internal/domain"
	pgloader "ambient-quiz-service/internal/infra/postgres"
	"ambient-quiz-service/internal/infra/postgres/migrations"
	infraredis "ambient-quiz-service/internal/infra/redis"
	"ambient-quiz-service/internal/ticket"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestPerfectRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, content.AmbientQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()
	loader := pgloader.NewQuizLoader(pool)
	require.NoError(t, loader.Ping(ctx))

	redisClient, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	defer redisClient.Close()

	renderer, err := ticket.NewRenderer(1)
	require.NoError(t, err)
	service := app.NewQuizService(
		infraredis.NewSessionStore(redisClient, 5*time.Minute),
		infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute),
		app.WithTickets(ticket.NewGenerator(nil, renderer)),
		app.WithAfterFunc(func(time.Duration) <-chan time.Time { return nil }),
	)
	require.NoError(t, service.Preload(ctx))

	view, err := service.Create(ctx, "alice")
	require.NoError(t, err)
	state, err := redisClient.Get(ctx, "quiz:session:"+view.ID).Result()
	require.NoError(t, err)
	assert.Equal(t, string(domain.StateInProgress), state)

	for _, q := range content.AmbientQuiz().Questions {
		_, err := service.Select(ctx, view.ID, q.CorrectOption)
		require.NoError(t, err)
		result, _, err := service.Submit(ctx, view.ID)
		require.NoError(t, err)
		require.True(t, result.Correct)
		_, err = service.Advance(ctx, view.ID)
		require.NoError(t, err)
	}

	result, err := service.Result(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Score)
	assert.Equal(t, "Ambient Master", result.Tier.Name)

	artifact, err := service.Ticket(ctx, view.ID)
	require.NoError(t, err)
	_, err = png.DecodeConfig(bytes.NewReader(artifact.Image))
	require.NoError(t, err)

	cached, err := redisClient.Exists(ctx, "quiz:"+content.AmbientQuizID+":content").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached)

	require.NoError(t, service.End(ctx, view.ID))
	gone, err := redisClient.Exists(ctx, "quiz:session:"+view.ID).Result()
	require.NoError(t, err)
	assert.Zero(t, gone)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	quiz := content.AmbientQuiz()
	seedQuiz(t, ctx, pgURL, quiz)
	quiz.Title = "Ambient Quiz, revised"
	seedQuiz(t, ctx, pgURL, quiz)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	loaded, err := pgloader.NewQuizLoader(pool).LoadQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ambient Quiz, revised", loaded.Title)
	assert.Len(t, loaded.Questions, len(quiz.Questions))

	_, err = pgloader.NewQuizLoader(pool).LoadQuiz(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)
	require.NoError(t, pgloader.Seed(ctx, db, quiz))
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
