package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ambient-quiz-service/internal/app"
	"ambient-quiz-service/internal/content"
	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/infra/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStartsSession(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	view, err := service.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "session-1", view.ID)
	assert.Equal(t, domain.StateInProgress, view.State)
	assert.Equal(t, 10, view.Total)
	assert.Equal(t, 1, store.Len())

	got, err := service.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ID, got.ID)
}

func TestCreateRejectsBadUsernameWithoutStoring(t *testing.T) {
	service, store := newTestService(t)

	_, err := service.Create(context.Background(), "bad name@")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, store.Len())
}

func TestUnknownSession(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	_, err := service.Select(ctx, "missing", 0)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, _, err = service.Submit(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, service.End(ctx, "missing"), domain.ErrSessionNotFound)
	_, _, err = service.Subscribe(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestFullRunProducesTicket(t *testing.T) {
	ctx := context.Background()
	tickets := &fakeTickets{}
	observer := &countingObserver{}
	service, _ := newTestService(t, app.WithTickets(tickets), app.WithObserver(observer))

	view, err := service.Create(ctx, "alice")
	require.NoError(t, err)

	_, err = service.Ticket(ctx, view.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState, "ticket before completion")

	correct := map[int]bool{1: true, 2: true, 4: true, 6: true, 8: true}
	for i, question := range content.AmbientQuiz().Questions {
		choice := (question.CorrectOption + 1) % len(question.Options)
		if correct[i+1] {
			choice = question.CorrectOption
		}
		_, err := service.Select(ctx, view.ID, choice)
		require.NoError(t, err)
		result, _, err := service.Submit(ctx, view.ID)
		require.NoError(t, err)
		assert.Equal(t, correct[i+1], result.Correct)
		_, err = service.Advance(ctx, view.ID)
		require.NoError(t, err)
	}

	final, err := service.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, final.State)
	assert.Equal(t, 5, final.Score)
	require.NotNil(t, final.Tier)
	assert.Equal(t, "Blockchain Explorer", final.Tier.Name)

	artifact, err := service.Ticket(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", artifact.Username)
	assert.Equal(t, 5, artifact.Score)
	assert.Equal(t, []domain.QuizResult{artifact.QuizResult}, tickets.requests)

	assert.Equal(t, 1, observer.opened)
	assert.Equal(t, []string{"Blockchain Explorer"}, observer.completed)
}

func TestTicketRenderFailureLeavesSessionUsable(t *testing.T) {
	ctx := context.Background()
	tickets := &fakeTickets{err: &domain.RenderError{Stage: "encode", Err: errors.New("boom")}}
	service, _ := newTestService(t, app.WithTickets(tickets))

	view, err := service.Create(ctx, "alice")
	require.NoError(t, err)
	for range content.AmbientQuiz().Questions {
		_, err := service.Select(ctx, view.ID, 0)
		require.NoError(t, err)
		_, _, err = service.Submit(ctx, view.ID)
		require.NoError(t, err)
		_, err = service.Advance(ctx, view.ID)
		require.NoError(t, err)
	}

	_, err = service.Ticket(ctx, view.ID)
	assert.ErrorIs(t, err, domain.ErrRender)

	result, err := service.Result(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, mustGet(t, service, view.ID).State)
	assert.Equal(t, 10, result.Total)

	restarted, err := service.Restart(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNotStarted, restarted.State)
	started, err := service.Start(ctx, view.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.StateInProgress, started.State)
}

func TestTicketWithoutGenerator(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	view, err := service.Create(ctx, "alice")
	require.NoError(t, err)

	for range content.AmbientQuiz().Questions {
		_, _ = service.Select(ctx, view.ID, 0)
		_, _, _ = service.Submit(ctx, view.ID)
		_, _ = service.Advance(ctx, view.ID)
	}
	_, err = service.Ticket(ctx, view.ID)
	assert.ErrorIs(t, err, domain.ErrRender)
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)
	view, err := service.Create(ctx, "alice")
	require.NoError(t, err)

	ch, cancel, err := service.Subscribe(ctx, view.ID)
	require.NoError(t, err)
	defer cancel()

	initial := <-ch
	assert.Nil(t, initial.Selected)

	_, err = service.Select(ctx, view.ID, 2)
	require.NoError(t, err)

	update := <-ch
	require.NotNil(t, update.Selected)
	assert.Equal(t, 2, *update.Selected)
}

func TestEndClosesSubscribersAndForgetsSession(t *testing.T) {
	ctx := context.Background()
	observer := &countingObserver{}
	service, store := newTestService(t, app.WithObserver(observer))
	view, err := service.Create(ctx, "alice")
	require.NoError(t, err)

	ch, cancel, err := service.Subscribe(ctx, view.ID)
	require.NoError(t, err)
	defer cancel()
	<-ch

	require.NoError(t, service.End(ctx, view.ID))
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, store.Len())
	assert.Equal(t, 1, observer.closed)

	_, err = service.Get(ctx, view.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSweepIdleEndsStaleSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	service, store := newTestService(t, app.WithClock(clock))

	stale, err := service.Create(ctx, "stale")
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()
	fresh, err := service.Create(ctx, "fresh")
	require.NoError(t, err)

	assert.Equal(t, 1, service.SweepIdle(ctx, 30*time.Minute))
	_, err = service.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = service.Get(ctx, fresh.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestPreloadRejectsBrokenTierTable(t *testing.T) {
	quiz := content.AmbientQuiz()
	quiz.Tiers = quiz.Tiers[:4]
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(quiz), time.Minute)
	service := app.NewQuizService(memory.NewSessionStore(), repo)

	assert.ErrorIs(t, service.Preload(context.Background()), domain.ErrTierTable)
	_, err := service.Create(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrTierTable)
}

func TestPreloadRejectsInvalidQuestions(t *testing.T) {
	cases := map[string]func(*domain.Quiz){
		"answer out of range": func(q *domain.Quiz) { q.Questions[0].CorrectOption = 9 },
		"negative answer":     func(q *domain.Quiz) { q.Questions[3].CorrectOption = -1 },
		"no options":          func(q *domain.Quiz) { q.Questions[1].Options = nil },
	}
	for name, breakQuiz := range cases {
		t.Run(name, func(t *testing.T) {
			quiz := content.AmbientQuiz()
			breakQuiz(&quiz)
			repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(quiz), time.Minute)
			store := memory.NewSessionStore()
			service := app.NewQuizService(store, repo)

			assert.ErrorIs(t, service.Preload(context.Background()), domain.ErrValidation)
			_, err := service.Create(context.Background(), "alice")
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Empty(t, store.List(context.Background()))
		})
	}
}

func TestQuizHidesAnswers(t *testing.T) {
	service, _ := newTestService(t)

	quiz, err := service.Quiz(context.Background())
	require.NoError(t, err)
	assert.Equal(t, content.AmbientQuizID, quiz.ID)
	assert.Len(t, quiz.Questions, 10)
	assert.Len(t, quiz.Tiers, 5)
}

func TestAutoAdvanceUsesConfiguredDelay(t *testing.T) {
	ctx := context.Background()
	var delays []time.Duration
	fire := make(chan time.Time, 1)
	service, _ := newTestService(t,
		app.WithAdvanceDelay(10*time.Millisecond),
		app.WithAfterFunc(func(d time.Duration) <-chan time.Time {
			delays = append(delays, d)
			return fire
		}),
	)

	view, err := service.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = service.Select(ctx, view.ID, 1)
	require.NoError(t, err)
	_, _, err = service.Submit(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, delays)

	fire <- time.Now()
	require.Eventually(t, func() bool {
		return mustGet(t, service, view.ID).CurrentIndex == 1
	}, time.Second, time.Millisecond)
}

func newTestService(t *testing.T, opts ...app.Option) (*app.QuizService, *memory.SessionStore) {
	t.Helper()
	store := memory.NewSessionStore()
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(content.AmbientQuiz()), 5*time.Minute)

	var mu sync.Mutex
	n := 0
	ids := func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "session-" + string(rune('0'+n))
	}

	never := func(time.Duration) <-chan time.Time { return nil }
	base := []app.Option{app.WithIDGenerator(ids), app.WithAfterFunc(never)}
	return app.NewQuizService(store, repo, append(base, opts...)...), store
}

func mustGet(t *testing.T, service *app.QuizService, id string) domain.SessionView {
	t.Helper()
	view, err := service.Get(context.Background(), id)
	require.NoError(t, err)
	return view
}

type fakeTickets struct {
	err      error
	requests []domain.QuizResult
}

func (f *fakeTickets) Generate(_ context.Context, result domain.QuizResult) (domain.TicketArtifact, error) {
	f.requests = append(f.requests, result)
	if f.err != nil {
		return domain.TicketArtifact{}, f.err
	}
	return domain.TicketArtifact{QuizResult: result, Image: []byte("png"), ContentType: "image/png"}, nil
}

type countingObserver struct {
	opened    int
	closed    int
	completed []string
}

func (o *countingObserver) SessionOpened() { o.opened++ }
func (o *countingObserver) SessionClosed() { o.closed++ }
func (o *countingObserver) QuizCompleted(result domain.QuizResult) {
	o.completed = append(o.completed, result.Tier.Name)
}
