package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ambient-quiz-service/internal/domain"
)

// DefaultAdvanceDelay is how long an explanation stays on screen before the
// session moves on by itself.
const DefaultAdvanceDelay = 2500 * time.Millisecond

// SessionConfig carries what a Session needs from its quiz and its owner.
type SessionConfig struct {
	Quiz         domain.Quiz
	Tiers        *TierTable
	AdvanceDelay time.Duration
	// After schedules the auto-advance; defaults to time.After.
	After func(time.Duration) <-chan time.Time
	Now   func() time.Time
	// OnComplete runs with the session lock held and must not call back into the session.
	OnComplete func(domain.QuizResult)
}

// Session is one player's run through a quiz.
//
// NotStarted -> InProgress(answering <-> explaining) -> Completed -> Restart -> NotStarted.
type Session struct {
	id         string
	quiz       domain.Quiz
	tiers      *TierTable
	delay      time.Duration
	after      func(time.Duration) <-chan time.Time
	now        func() time.Time
	onComplete func(domain.QuizResult)

	mu            sync.Mutex
	state         domain.SessionState
	phase         domain.Phase
	username      string
	currentIndex  int
	selected      int
	answers       []int
	score         int
	last          *domain.AnswerResult
	updatedAt     time.Time
	closed        bool
	cancelAdvance context.CancelFunc
	subscribers   map[chan domain.SessionView]struct{}
}

func NewSession(id string, cfg SessionConfig) *Session {
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = DefaultAdvanceDelay
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Session{
		id:          id,
		quiz:        cfg.Quiz,
		tiers:       cfg.Tiers,
		delay:       cfg.AdvanceDelay,
		after:       cfg.After,
		now:         cfg.Now,
		onComplete:  cfg.OnComplete,
		subscribers: make(map[chan domain.SessionView]struct{}),
	}
	s.resetLocked()
	return s
}

func (s *Session) ID() string { return s.id }

// Start begins the quiz for username.
func (s *Session) Start(username string) error {
	if err := domain.ValidateUsername(username); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionNotFound
	}
	if s.state != domain.StateNotStarted {
		return fmt.Errorf("%w: quiz already started", domain.ErrInvalidState)
	}
	if len(s.quiz.Questions) == 0 {
		return fmt.Errorf("%w: quiz %q has no questions", domain.ErrInvalidState, s.quiz.ID)
	}

	s.username = username
	s.state = domain.StateInProgress
	s.phase = domain.PhaseAnswering
	s.touchLocked()
	s.broadcastLocked()
	return nil
}

// SelectOption records a provisional choice. It is ignored while the
// explanation for the current question is showing.
func (s *Session) SelectOption(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionNotFound
	}
	if s.state != domain.StateInProgress {
		return fmt.Errorf("%w: quiz is %s", domain.ErrInvalidState, s.state)
	}
	if s.phase == domain.PhaseExplaining {
		return nil
	}
	question := s.quiz.Questions[s.currentIndex]
	if index < 0 || index >= len(question.Options) {
		return &domain.ValidationError{Field: "optionIndex", Reason: fmt.Sprintf("%d outside [0, %d)", index, len(question.Options))}
	}

	s.selected = index
	s.touchLocked()
	s.broadcastLocked()
	return nil
}

// SubmitAnswer grades the selected option and schedules the auto-advance.
func (s *Session) SubmitAnswer() (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	if s.state != domain.StateInProgress {
		return domain.AnswerResult{}, fmt.Errorf("%w: quiz is %s", domain.ErrInvalidState, s.state)
	}
	if s.phase == domain.PhaseExplaining {
		return domain.AnswerResult{}, fmt.Errorf("%w: answer already submitted", domain.ErrInvalidState)
	}
	if s.selected < 0 {
		return domain.AnswerResult{}, fmt.Errorf("%w: no option selected", domain.ErrInvalidState)
	}

	question := s.quiz.Questions[s.currentIndex]
	correct := s.selected == question.CorrectOption
	if correct {
		s.score++
	}
	s.answers = append(s.answers, s.selected)

	result := domain.AnswerResult{
		QuestionID:    question.ID,
		Selected:      s.selected,
		CorrectOption: question.CorrectOption,
		Correct:       correct,
		Explanation:   question.Explanation,
		Score:         s.score,
	}
	s.last = &result
	s.phase = domain.PhaseExplaining
	s.scheduleAdvanceLocked()
	s.touchLocked()
	s.broadcastLocked()
	return result, nil
}

// Advance skips the remaining explanation delay.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionNotFound
	}
	if s.state != domain.StateInProgress || s.phase != domain.PhaseExplaining {
		return fmt.Errorf("%w: nothing to advance from", domain.ErrInvalidState)
	}
	s.advanceLocked()
	return nil
}

// Tier maps the current score onto the tier table.
func (s *Session) Tier() (domain.Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tierLocked()
}

// Result is the graded outcome; only available once the quiz is completed.
func (s *Session) Result() (domain.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.QuizResult{}, domain.ErrSessionNotFound
	}
	if s.state != domain.StateCompleted {
		return domain.QuizResult{}, fmt.Errorf("%w: quiz is %s", domain.ErrInvalidState, s.state)
	}
	return s.resultLocked()
}

// Restart discards all progress and returns to the pre-start state.
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionNotFound
	}
	s.stopAdvanceLocked()
	s.resetLocked()
	s.touchLocked()
	s.broadcastLocked()
	return nil
}

// Close tears the session down: the pending advance is cancelled and
// subscribers are released. Further calls return ErrSessionNotFound.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopAdvanceLocked()
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// LastActive reports when the session last changed.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) subscribe() (<-chan domain.SessionView, func()) {
	ch := make(chan domain.SessionView, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	// ch is fresh, so this cannot block; sending under the lock keeps Close
	// from closing ch first.
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) scheduleAdvanceLocked() {
	s.stopAdvanceLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelAdvance = cancel
	go s.awaitAdvance(ctx, s.after(s.delay), s.currentIndex)
}

func (s *Session) awaitAdvance(ctx context.Context, fire <-chan time.Time, index int) {
	select {
	case <-ctx.Done():
		return
	case <-fire:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Restart, Close or a manual Advance may have won the race for the lock.
	if ctx.Err() != nil || s.closed || s.state != domain.StateInProgress ||
		s.phase != domain.PhaseExplaining || s.currentIndex != index {
		return
	}
	s.advanceLocked()
}

func (s *Session) stopAdvanceLocked() {
	if s.cancelAdvance != nil {
		s.cancelAdvance()
		s.cancelAdvance = nil
	}
}

func (s *Session) advanceLocked() {
	s.stopAdvanceLocked()
	s.selected = -1
	s.last = nil

	if next := s.currentIndex + 1; next < len(s.quiz.Questions) {
		s.currentIndex = next
		s.phase = domain.PhaseAnswering
	} else {
		s.currentIndex = len(s.quiz.Questions)
		s.state = domain.StateCompleted
		s.phase = ""
		if s.onComplete != nil {
			if result, err := s.resultLocked(); err == nil {
				s.onComplete(result)
			}
		}
	}
	s.touchLocked()
	s.broadcastLocked()
}

func (s *Session) resetLocked() {
	s.state = domain.StateNotStarted
	s.phase = ""
	s.username = ""
	s.currentIndex = 0
	s.selected = -1
	s.answers = nil
	s.score = 0
	s.last = nil
	s.updatedAt = s.now()
}

func (s *Session) touchLocked() {
	s.updatedAt = s.now()
}

func (s *Session) tierLocked() (domain.Tier, error) {
	if s.tiers == nil {
		return domain.Tier{}, fmt.Errorf("%w: session %s has no tier table", domain.ErrTierTable, s.id)
	}
	return s.tiers.Lookup(s.score)
}

func (s *Session) resultLocked() (domain.QuizResult, error) {
	tier, err := s.tierLocked()
	if err != nil {
		return domain.QuizResult{}, err
	}
	return domain.QuizResult{
		Username: s.username,
		Score:    s.score,
		Total:    len(s.quiz.Questions),
		Tier:     tier,
	}, nil
}

func (s *Session) broadcastLocked() {
	view := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// Slow reader: replace its oldest pending view with the newest.
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}

func (s *Session) snapshotLocked() domain.SessionView {
	view := domain.SessionView{
		ID:           s.id,
		QuizID:       s.quiz.ID,
		Username:     s.username,
		State:        s.state,
		Phase:        s.phase,
		CurrentIndex: s.currentIndex,
		Total:        len(s.quiz.Questions),
		Score:        s.score,
		Answers:      append([]int{}, s.answers...),
		UpdatedAt:    s.updatedAt,
	}
	if s.selected >= 0 {
		selected := s.selected
		view.Selected = &selected
	}
	if s.last != nil {
		last := *s.last
		view.LastResult = &last
	}
	if s.state == domain.StateInProgress && s.currentIndex < len(s.quiz.Questions) {
		question := s.quiz.Questions[s.currentIndex].Public()
		view.Question = &question
	}
	if s.state == domain.StateCompleted {
		if tier, err := s.tierLocked(); err == nil {
			view.Tier = &tier
			view.Remark = domain.Remark(s.score, len(s.quiz.Questions))
		}
	}
	return view
}
