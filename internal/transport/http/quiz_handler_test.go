package http

import (
	"bytes"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"testing"

	"ambient-quiz-service/internal/content"
	"ambient-quiz-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) createSession(t *testing.T, username string) domain.SessionView {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/quiz/sessions", StartRequest{Username: username})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[domain.SessionView](t, resp)
}

// answerAll plays a whole quiz picking the correct option for the first
// `correct` questions and a wrong one afterwards.
func (f *fixture) answerAll(t *testing.T, id string, correct int) {
	t.Helper()
	for i, q := range content.AmbientQuiz().Questions {
		choice := q.CorrectOption
		if i >= correct {
			choice = (q.CorrectOption + 1) % len(q.Options)
		}
		resp := f.do(t, http.MethodPost, "/api/quiz/sessions/"+id+"/select", map[string]int{"optionIndex": choice})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp = f.do(t, http.MethodPost, "/api/quiz/sessions/"+id+"/submit", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp = f.do(t, http.MethodPost, "/api/quiz/sessions/"+id+"/advance", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestGetQuizHidesAnswers(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/quiz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "correctOption")
	assert.NotContains(t, string(body), "explanation")
	assert.Contains(t, string(body), "Ambient Master")
}

func TestCreateSessionValidatesUsername(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/quiz/sessions", StartRequest{Username: "way_too_long_username"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[ErrorResponse](t, resp).Error, "username")

	resp = f.do(t, http.MethodPost, "/api/quiz/sessions", map[string]any{"username": "alice", "extra": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionLifecycleOverREST(t *testing.T) {
	f := newFixture(t)
	view := f.createSession(t, "alice")
	assert.Equal(t, domain.StateInProgress, view.State)
	require.NotNil(t, view.Question)
	base := "/api/quiz/sessions/" + view.ID

	// submit before select is a state error
	resp := f.do(t, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodPost, base+"/select", map[string]int{"optionIndex": 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = f.do(t, http.MethodPost, base+"/select", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	correct := content.AmbientQuiz().Questions[0].CorrectOption
	resp = f.do(t, http.MethodPost, base+"/select", map[string]int{"optionIndex": correct})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, correct, *decode[domain.SessionView](t, resp).Selected)

	resp = f.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	submitted := decode[SubmitResponse](t, resp)
	assert.True(t, submitted.Result.Correct)
	assert.Equal(t, 1, submitted.Session.Score)
	assert.Equal(t, domain.PhaseExplaining, submitted.Session.Phase)

	resp = f.do(t, http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[domain.SessionView](t, resp).CurrentIndex)

	resp = f.do(t, http.MethodGet, base+"/ticket", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "ticket requires a completed quiz")

	resp = f.do(t, http.MethodPost, base+"/restart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.StateNotStarted, decode[domain.SessionView](t, resp).State)

	resp = f.do(t, http.MethodPost, base+"/start", StartRequest{Username: "bob"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	restarted := decode[domain.SessionView](t, resp)
	assert.Equal(t, "bob", restarted.Username)
	assert.Zero(t, restarted.Score)

	resp = f.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompletedSessionTicketAndShare(t *testing.T) {
	f := newFixture(t)
	view := f.createSession(t, "alice")
	f.answerAll(t, view.ID, 5)
	base := "/api/quiz/sessions/" + view.ID

	resp := f.do(t, http.MethodGet, base, nil)
	done := decode[domain.SessionView](t, resp)
	assert.Equal(t, domain.StateCompleted, done.State)
	require.NotNil(t, done.Tier)
	assert.Equal(t, "Blockchain Explorer", done.Tier.Name)

	resp = f.do(t, http.MethodGet, base+"/ticket", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ambient-quiz-alice.png"`, resp.Header.Get("Content-Disposition"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_, err = png.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)

	resp = f.do(t, http.MethodGet, base+"/share", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	share := decode[ShareResponse](t, resp)
	assert.Contains(t, share.Caption, "5/10")
	link, err := url.Parse(share.URL)
	require.NoError(t, err)
	assert.Equal(t, share.Caption, link.Query().Get("text"))
	assert.Equal(t, "https://ambient.xyz", link.Query().Get("url"))
}

func TestUnknownSessionIs404(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/quiz/sessions/nope", "/api/quiz/sessions/nope/ticket", "/api/quiz/sessions/nope/share"} {
		resp := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}
