package domain

import (
	"fmt"
	"regexp"
	"time"
)

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID            int      `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	Explanation   string   `json:"explanation"`
}

// Tier is a named score-range bucket with its display colour.
type Tier struct {
	Name        string `json:"name"`
	MinScore    int    `json:"minScore"`
	MaxScore    int    `json:"maxScore"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// Contains reports whether score falls in [MinScore, MaxScore].
func (t Tier) Contains(score int) bool {
	return score >= t.MinScore && score <= t.MaxScore
}

// Quiz is a fixed ordered question set plus the tier table used to grade it.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	Tiers     []Tier     `json:"tiers"`
}

// Validate checks that the question has options and its answer is one of them.
func (q Question) Validate() error {
	if len(q.Options) == 0 {
		return &ValidationError{Field: fmt.Sprintf("question %d options", q.ID), Reason: "must not be empty"}
	}
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		return &ValidationError{
			Field:  fmt.Sprintf("question %d correctOption", q.ID),
			Reason: fmt.Sprintf("%d outside [0, %d)", q.CorrectOption, len(q.Options)),
		}
	}
	return nil
}

// Validate checks every question of the quiz. Tier ranges are checked by
// app.NewTierTable, which needs the question count.
func (q Quiz) Validate() error {
	for _, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return fmt.Errorf("quiz %s: %w", q.ID, err)
		}
	}
	return nil
}

// PublicQuestion is a question as shown to players: no answer, no explanation.
type PublicQuestion struct {
	ID      int      `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// PublicQuiz is the question list safe to hand to clients before they answer.
type PublicQuiz struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Questions []PublicQuestion `json:"questions"`
	Tiers     []Tier           `json:"tiers"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{ID: q.ID, Prompt: q.Prompt, Options: append([]string(nil), q.Options...)}
}

func (q Quiz) Public() PublicQuiz {
	questions := make([]PublicQuestion, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, question.Public())
	}
	return PublicQuiz{
		ID:        q.ID,
		Title:     q.Title,
		Questions: questions,
		Tiers:     append([]Tier(nil), q.Tiers...),
	}
}

// SessionState is the top level of the quiz state machine.
type SessionState string

const (
	StateNotStarted SessionState = "not_started"
	StateInProgress SessionState = "in_progress"
	StateCompleted  SessionState = "completed"
)

// Phase refines StateInProgress.
type Phase string

const (
	PhaseAnswering  Phase = "answering"
	PhaseExplaining Phase = "explaining"
)

// AnswerResult summarizes the outcome of one submission.
type AnswerResult struct {
	QuestionID    int    `json:"questionId"`
	Selected      int    `json:"selected"`
	CorrectOption int    `json:"correctOption"`
	Correct       bool   `json:"correct"`
	Explanation   string `json:"explanation"`
	Score         int    `json:"score"`
}

// SessionView is the snapshot pushed to clients after every state change.
type SessionView struct {
	ID           string          `json:"id"`
	QuizID       string          `json:"quizId"`
	Username     string          `json:"username,omitempty"`
	State        SessionState    `json:"state"`
	Phase        Phase           `json:"phase,omitempty"`
	CurrentIndex int             `json:"currentIndex"`
	Total        int             `json:"total"`
	Score        int             `json:"score"`
	Answers      []int           `json:"answers"`
	Selected     *int            `json:"selected,omitempty"`
	Question     *PublicQuestion `json:"question,omitempty"`
	LastResult   *AnswerResult   `json:"lastResult,omitempty"`
	Tier         *Tier           `json:"tier,omitempty"`
	Remark       string          `json:"remark,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// QuizResult is the graded outcome of a completed session.
type QuizResult struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
	Total    int    `json:"total"`
	Tier     Tier   `json:"tier"`
}

// Avatar is a fetched profile image.
type Avatar struct {
	Data        []byte
	ContentType string
}

// TicketArtifact is the rasterized result card. It is never persisted.
type TicketArtifact struct {
	QuizResult
	Image       []byte
	ContentType string
}

// TicketFile is a ticket prepared for download.
type TicketFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one entry of a chat transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// ValidateUsername accepts 1-15 ASCII letters, digits or underscores.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return &ValidationError{Field: "username", Reason: "must be 1-15 letters, digits or underscores"}
	}
	return nil
}

// Remark is the short verdict shown next to a final score.
func Remark(score, total int) string {
	switch {
	case total > 0 && score >= total:
		return "Perfect score!"
	case score*10 >= total*8:
		return "Excellent work!"
	case score*10 >= total*6:
		return "Good job!"
	default:
		return "Keep learning!"
	}
}
