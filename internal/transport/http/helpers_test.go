package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ambient-quiz-service/internal/app"
	"ambient-quiz-service/internal/chat"
	"ambient-quiz-service/internal/content"
	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/infra/memory"
	"ambient-quiz-service/internal/ticket"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	service *app.QuizService
	server  *httptest.Server
	relay   *fakeRelay
	models  *fakeModels
	avatars *fakeAvatars
}

type fixtureOption func(*Deps)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	renderer, err := ticket.NewRenderer(1)
	require.NoError(t, err)

	avatars := &fakeAvatars{}
	service := app.NewQuizService(
		memory.NewSessionStore(),
		memory.NewQuizRepository(memory.NewStaticQuizLoader(content.AmbientQuiz()), time.Minute),
		app.WithTickets(ticket.NewGenerator(avatars, renderer)),
		// explanations stay up until the client advances
		app.WithAfterFunc(func(time.Duration) <-chan time.Time { return nil }),
	)
	relay := &fakeRelay{}
	models := &fakeModels{}
	deps := Deps{
		Quiz:    service,
		Chat:    NewChatHandler(relay, models, nil),
		Avatars: avatars,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	server := httptest.NewServer(NewRouter(deps))
	t.Cleanup(server.Close)
	return &fixture{service: service, server: server, relay: relay, models: models, avatars: avatars}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, f.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type fakeRelay struct {
	reply chat.Reply
	err   error
	got   ChatRequest
}

func (f *fakeRelay) Send(_ context.Context, transcript []domain.Message, opts chat.Options) (chat.Reply, error) {
	f.got = ChatRequest{
		Messages:            transcript,
		Model:               opts.Model,
		Temperature:         opts.Temperature,
		MaxCompletionTokens: opts.MaxOutputTokens,
		Mode:                opts.Mode,
		EmitVerified:        opts.EmitVerified,
	}
	return f.reply, f.err
}

type fakeModels struct {
	list chat.ModelList
	err  error
}

func (f *fakeModels) ListModels(context.Context) (chat.ModelList, error) {
	return f.list, f.err
}

func (f *fakeModels) GetModel(_ context.Context, id string) (chat.Model, error) {
	if f.err != nil {
		return chat.Model{}, f.err
	}
	for _, m := range f.list.Data {
		if m.ID == id {
			return m, nil
		}
	}
	return chat.Model{}, &domain.UpstreamError{Status: http.StatusNotFound, Message: http.StatusText(http.StatusNotFound)}
}

type fakeAvatars struct {
	avatar domain.Avatar
	err    error
}

func (f *fakeAvatars) FetchAvatar(_ context.Context, username string) (domain.Avatar, error) {
	if f.err != nil {
		return domain.Avatar{}, f.err
	}
	if f.avatar.Data == nil {
		return domain.Avatar{}, &domain.AvatarUnavailableError{Username: username, Status: http.StatusNotFound}
	}
	return f.avatar, nil
}
