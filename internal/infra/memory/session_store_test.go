package memory

import (
	"context"
	"testing"

	"ambient-quiz-service/internal/app"
	"ambient-quiz-service/internal/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	session := app.NewSession("s-1", app.SessionConfig{Quiz: content.AmbientQuiz()})
	require.NoError(t, store.Put(ctx, session))

	got, ok := store.Get(ctx, "s-1")
	require.True(t, ok)
	assert.Same(t, session, got)
	assert.Len(t, store.List(ctx), 1)

	// Putting the same session again only refreshes it.
	require.NoError(t, store.Put(ctx, session))
	assert.Equal(t, 1, store.Len())

	store.Delete(ctx, "s-1")
	_, ok = store.Get(ctx, "s-1")
	assert.False(t, ok)
	assert.Empty(t, store.List(ctx))
}
