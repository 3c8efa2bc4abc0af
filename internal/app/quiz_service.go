package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ambient-quiz-service/internal/content"
	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionRepository abstracts how quiz sessions are held (in-memory, Redis-backed, etc).
type SessionRepository interface {
	Put(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, bool)
	Delete(ctx context.Context, id string)
	List(ctx context.Context) []*Session
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// TicketGenerator renders the shareable result card for a completed quiz.
type TicketGenerator interface {
	Generate(ctx context.Context, result domain.QuizResult) (domain.TicketArtifact, error)
}

// Observer is told about session lifecycle events, e.g. for metrics.
type Observer interface {
	SessionOpened()
	SessionClosed()
	QuizCompleted(result domain.QuizResult)
}

type nopObserver struct{}

func (nopObserver) SessionOpened()                  {}
func (nopObserver) SessionClosed()                  {}
func (nopObserver) QuizCompleted(domain.QuizResult) {}

// Option customizes a QuizService.
type Option func(*QuizService)

func WithQuizID(id string) Option {
	return func(s *QuizService) { s.quizID = id }
}

func WithAdvanceDelay(d time.Duration) Option {
	return func(s *QuizService) { s.delay = d }
}

// WithAfterFunc replaces time.After for the auto-advance timer.
func WithAfterFunc(after func(time.Duration) <-chan time.Time) Option {
	return func(s *QuizService) { s.after = after }
}

func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

func WithTickets(tickets TicketGenerator) Option {
	return func(s *QuizService) { s.tickets = tickets }
}

func WithObserver(observer Observer) Option {
	return func(s *QuizService) { s.observer = observer }
}

// QuizService contains the quiz use cases. Each session is independent.
type QuizService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	tickets  TicketGenerator
	observer Observer

	quizID string
	delay  time.Duration
	after  func(time.Duration) <-chan time.Time
	now    func() time.Time
	newID  func() string
}

func NewQuizService(store SessionRepository, quizzes QuizRepository, opts ...Option) *QuizService {
	s := &QuizService{
		sessions: store,
		quizzes:  quizzes,
		observer: nopObserver{},
		quizID:   content.AmbientQuizID,
		delay:    DefaultAdvanceDelay,
		after:    time.After,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preload fetches the quiz and validates its tier table so a broken
// configuration fails at startup rather than on the first completed quiz.
func (s *QuizService) Preload(ctx context.Context) error {
	_, _, err := s.loadQuiz(ctx)
	return err
}

// Quiz returns the question list without answers, plus the tier table.
func (s *QuizService) Quiz(ctx context.Context) (domain.PublicQuiz, error) {
	quiz, tiers, err := s.loadQuiz(ctx)
	if err != nil {
		return domain.PublicQuiz{}, err
	}
	public := quiz.Public()
	public.Tiers = tiers.Tiers()
	return public, nil
}

// Create opens a new session and starts it for username.
func (s *QuizService) Create(ctx context.Context, username string) (domain.SessionView, error) {
	if err := domain.ValidateUsername(username); err != nil {
		return domain.SessionView{}, err
	}
	quiz, tiers, err := s.loadQuiz(ctx)
	if err != nil {
		return domain.SessionView{}, err
	}

	session := NewSession(s.newID(), SessionConfig{
		Quiz:         quiz,
		Tiers:        tiers,
		AdvanceDelay: s.delay,
		After:        s.after,
		Now:          s.now,
		OnComplete:   s.observer.QuizCompleted,
	})
	if err := session.Start(username); err != nil {
		return domain.SessionView{}, err
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		session.Close()
		s.sessions.Delete(ctx, session.ID())
		return domain.SessionView{}, fmt.Errorf("store session: %w", err)
	}
	s.observer.SessionOpened()

	logging.WithContext(ctx).WithFields(logrus.Fields{
		"session_id": session.ID(),
		"quiz_id":    quiz.ID,
	}).Info("quiz session started")
	return session.View(), nil
}

// Start begins a session again after a restart.
func (s *QuizService) Start(ctx context.Context, id, username string) (domain.SessionView, error) {
	return s.mutate(ctx, id, func(session *Session) error { return session.Start(username) })
}

func (s *QuizService) Select(ctx context.Context, id string, optionIndex int) (domain.SessionView, error) {
	return s.mutate(ctx, id, func(session *Session) error { return session.SelectOption(optionIndex) })
}

// Submit grades the selected option. The session then explains the answer
// and advances by itself after the configured delay.
func (s *QuizService) Submit(ctx context.Context, id string) (domain.AnswerResult, domain.SessionView, error) {
	var result domain.AnswerResult
	view, err := s.mutate(ctx, id, func(session *Session) error {
		var err error
		result, err = session.SubmitAnswer()
		return err
	})
	return result, view, err
}

func (s *QuizService) Advance(ctx context.Context, id string) (domain.SessionView, error) {
	return s.mutate(ctx, id, func(session *Session) error { return session.Advance() })
}

func (s *QuizService) Restart(ctx context.Context, id string) (domain.SessionView, error) {
	return s.mutate(ctx, id, func(session *Session) error { return session.Restart() })
}

func (s *QuizService) Get(ctx context.Context, id string) (domain.SessionView, error) {
	session, err := s.session(ctx, id)
	if err != nil {
		return domain.SessionView{}, err
	}
	return session.View(), nil
}

// Result returns the graded outcome of a completed session.
func (s *QuizService) Result(ctx context.Context, id string) (domain.QuizResult, error) {
	session, err := s.session(ctx, id)
	if err != nil {
		return domain.QuizResult{}, err
	}
	return session.Result()
}

// Ticket renders the result card of a completed session.
func (s *QuizService) Ticket(ctx context.Context, id string) (domain.TicketArtifact, error) {
	result, err := s.Result(ctx, id)
	if err != nil {
		return domain.TicketArtifact{}, err
	}
	if s.tickets == nil {
		return domain.TicketArtifact{}, &domain.RenderError{Stage: "setup", Err: errors.New("ticket rendering not configured")}
	}
	return s.tickets.Generate(ctx, result)
}

// Subscribe returns a channel that receives session snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context, id string) (<-chan domain.SessionView, func(), error) {
	session, err := s.session(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// End tears a session down and forgets it.
func (s *QuizService) End(ctx context.Context, id string) error {
	session, err := s.session(ctx, id)
	if err != nil {
		return err
	}
	s.end(ctx, session)
	return nil
}

// SweepIdle ends sessions untouched for longer than maxIdle and reports how many it removed.
func (s *QuizService) SweepIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for _, session := range s.sessions.List(ctx) {
		if session.LastActive().Before(cutoff) {
			s.end(ctx, session)
			removed++
		}
	}
	if removed > 0 {
		logging.WithContext(ctx).WithField("removed", removed).Info("swept idle quiz sessions")
	}
	return removed
}

func (s *QuizService) end(ctx context.Context, session *Session) {
	session.Close()
	s.sessions.Delete(ctx, session.ID())
	s.observer.SessionClosed()
}

func (s *QuizService) mutate(ctx context.Context, id string, op func(*Session) error) (domain.SessionView, error) {
	session, err := s.session(ctx, id)
	if err != nil {
		return domain.SessionView{}, err
	}
	if err := op(session); err != nil {
		return domain.SessionView{}, err
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		logging.WithContext(ctx).WithError(err).WithField("session_id", id).Warn("refresh session liveness")
	}
	return session.View(), nil
}

func (s *QuizService) session(ctx context.Context, id string) (*Session, error) {
	session, ok := s.sessions.Get(ctx, id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *QuizService) loadQuiz(ctx context.Context) (domain.Quiz, *TierTable, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, s.quizID)
	if err != nil {
		return domain.Quiz{}, nil, err
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, nil, err
	}
	tiers, err := NewTierTable(quiz.Tiers, len(quiz.Questions))
	if err != nil {
		return domain.Quiz{}, nil, fmt.Errorf("quiz %s: %w", quiz.ID, err)
	}
	return quiz, tiers, nil
}
