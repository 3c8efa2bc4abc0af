package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ambient-quiz-service/internal/content"
	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, client := newMiniredis(t)

	loader := &countingLoader{QuizLoader: memory.NewStaticQuizLoader(content.AmbientQuiz())}
	repo := NewQuizRepository(client, loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), content.AmbientQuizID)
	require.NoError(t, err)
	assert.Len(t, quiz.Questions, 10)
	assert.Equal(t, int32(1), loader.calls.Load())

	require.True(t, mr.Exists("quiz:ambient:content"))
	ttl := mr.TTL("quiz:ambient:content")
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.LessOrEqual(t, ttl, time.Minute+6*time.Second)

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetQuiz(context.Background(), content.AmbientQuizID)
	require.NoError(t, err)
	assert.Equal(t, quiz, cached)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestQuizRepositoryReloadsAfterExpiryAndInvalidate(t *testing.T) {
	mr, client := newMiniredis(t)
	loader := &countingLoader{QuizLoader: memory.NewStaticQuizLoader(content.AmbientQuiz())}
	repo := NewQuizRepository(client, loader, time.Minute)
	ctx := context.Background()

	_, err := repo.GetQuiz(ctx, content.AmbientQuizID)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = repo.GetQuiz(ctx, content.AmbientQuizID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())

	require.NoError(t, repo.Invalidate(ctx, content.AmbientQuizID))
	_, err = repo.GetQuiz(ctx, content.AmbientQuizID)
	require.NoError(t, err)
	assert.Equal(t, int32(3), loader.calls.Load())
}

func TestQuizRepositoryIgnoresCorruptEntry(t *testing.T) {
	mr, client := newMiniredis(t)
	require.NoError(t, mr.Set("quiz:ambient:content", "{not json"))

	loader := &countingLoader{QuizLoader: memory.NewStaticQuizLoader(content.AmbientQuiz())}
	quiz, err := NewQuizRepository(client, loader, time.Minute).GetQuiz(context.Background(), content.AmbientQuizID)
	require.NoError(t, err)
	assert.Equal(t, content.AmbientQuizID, quiz.ID)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestQuizRepositoryUnknownQuiz(t *testing.T) {
	_, client := newMiniredis(t)
	repo := NewQuizRepository(client, memory.NewStaticQuizLoader(), time.Minute)

	_, err := repo.GetQuiz(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

type countingLoader struct {
	memory.QuizLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls.Add(1)
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
