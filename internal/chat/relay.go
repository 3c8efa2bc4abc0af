package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/logging"
	"github.com/sirupsen/logrus"
)

const (
	DefaultModel           = "mini"
	DefaultTemperature     = 0.7
	DefaultMaxOutputTokens = 2000
)

// Mode selects which system prompt the relay prepends.
type Mode string

const (
	// ModeRestricted replaces caller system messages with the Ambient-only prompt.
	ModeRestricted Mode = "restricted"
	// ModePlayground keeps caller system messages and falls back to PlaygroundPrompt.
	ModePlayground Mode = "playground"
)

func (m Mode) Valid() bool { return m == ModeRestricted || m == ModePlayground }

// Completer is the upstream call the relay forwards to; *Client satisfies it.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Options tune one Send. Zero values fall back to the relay defaults.
type Options struct {
	Model           string
	Temperature     *float64
	MaxOutputTokens int
	Mode            Mode
	EmitVerified    bool
}

// Reply is the scrubbed assistant message plus upstream metadata.
type Reply struct {
	Message    domain.Message `json:"message"`
	Model      string         `json:"model,omitempty"`
	Usage      *Usage         `json:"usage,omitempty"`
	MerkleRoot string         `json:"merkleRoot,omitempty"`
	Verified   *bool          `json:"verified,omitempty"`
}

// Relay validates transcripts and forwards them upstream. It keeps no
// transcript state: callers append the reply on success and append nothing
// on failure, so the pending user message is resent on retry.
type Relay struct {
	client       Completer
	defaults     Options
	restricted   string
	observeReply func(outcome string)
}

func NewRelay(client Completer, defaults Options) *Relay {
	if defaults.Model == "" {
		defaults.Model = DefaultModel
	}
	if defaults.Temperature == nil {
		t := DefaultTemperature
		defaults.Temperature = &t
	}
	if defaults.MaxOutputTokens <= 0 {
		defaults.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if !defaults.Mode.Valid() {
		defaults.Mode = ModeRestricted
	}
	return &Relay{client: client, defaults: defaults, restricted: RestrictedPrompt()}
}

// OnOutcome registers a hook that receives "ok", "validation", "upstream",
// "timeout", "protocol" or "error" after every Send.
func (r *Relay) OnOutcome(fn func(outcome string)) {
	r.observeReply = fn
}

// Send forwards transcript and returns the assistant's reply. The transcript is never modified.
func (r *Relay) Send(ctx context.Context, transcript []domain.Message, opts Options) (Reply, error) {
	reply, err := r.send(ctx, transcript, opts)
	if r.observeReply != nil {
		r.observeReply(Outcome(err))
	}
	return reply, err
}

func (r *Relay) send(ctx context.Context, transcript []domain.Message, opts Options) (Reply, error) {
	if err := ValidateTranscript(transcript); err != nil {
		return Reply{}, err
	}
	opts = r.withDefaults(opts)
	if !opts.Mode.Valid() {
		return Reply{}, &domain.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", opts.Mode)}
	}

	req := CompletionRequest{
		Model:               opts.Model,
		Messages:            r.prepare(transcript, opts.Mode),
		Temperature:         *opts.Temperature,
		MaxCompletionTokens: opts.MaxOutputTokens,
		Stream:              false,
		EmitUsage:           true,
		EmitVerified:        opts.EmitVerified,
		Reasoning:           &Reasoning{Enabled: false},
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		logging.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
			"model":    req.Model,
			"messages": len(req.Messages),
		}).Error("chat relay failed")
		return Reply{}, err
	}
	if len(resp.Choices) == 0 {
		return Reply{}, &domain.ProtocolError{Reason: "response has no choices"}
	}

	return Reply{
		Message:    domain.Message{Role: domain.RoleAssistant, Content: ScrubThinking(resp.Choices[0].Message.Content)},
		Model:      resp.Model,
		Usage:      resp.Usage,
		MerkleRoot: resp.MerkleRoot,
		Verified:   resp.Verified,
	}, nil
}

func (r *Relay) withDefaults(opts Options) Options {
	if opts.Model == "" {
		opts.Model = r.defaults.Model
	}
	if opts.Temperature == nil {
		opts.Temperature = r.defaults.Temperature
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = r.defaults.MaxOutputTokens
	}
	if opts.Mode == "" {
		opts.Mode = r.defaults.Mode
	}
	return opts
}

// prepare builds the outbound message list in a fresh slice.
func (r *Relay) prepare(transcript []domain.Message, mode Mode) []domain.Message {
	out := make([]domain.Message, 0, len(transcript)+1)
	switch mode {
	case ModeRestricted:
		out = append(out, domain.Message{Role: domain.RoleSystem, Content: r.restricted})
		for _, msg := range transcript {
			if msg.Role != domain.RoleSystem {
				out = append(out, msg)
			}
		}
	default:
		hasSystem := false
		for _, msg := range transcript {
			if msg.Role == domain.RoleSystem {
				hasSystem = true
				break
			}
		}
		if !hasSystem {
			out = append(out, domain.Message{Role: domain.RoleSystem, Content: PlaygroundPrompt})
		}
		out = append(out, transcript...)
	}
	return out
}

// ValidateTranscript requires known roles, non-blank content and at least
// one user or assistant message.
func ValidateTranscript(transcript []domain.Message) error {
	if len(transcript) == 0 {
		return &domain.ValidationError{Field: "messages", Reason: "transcript is empty"}
	}
	conversational := 0
	for i, msg := range transcript {
		if !msg.Role.Valid() {
			return &domain.ValidationError{Field: fmt.Sprintf("messages[%d].role", i), Reason: fmt.Sprintf("unknown role %q", msg.Role)}
		}
		if strings.TrimSpace(msg.Content) == "" {
			return &domain.ValidationError{Field: fmt.Sprintf("messages[%d].content", i), Reason: "message is empty"}
		}
		if msg.Role != domain.RoleSystem {
			conversational++
		}
	}
	if conversational == 0 {
		return &domain.ValidationError{Field: "messages", Reason: "transcript has only system messages"}
	}
	return nil
}

var thinkingPattern = regexp.MustCompile(`(?is)<think>.*?</think>`)

// ScrubThinking removes <think>...</think> reasoning traces from model output.
func ScrubThinking(content string) string {
	return strings.TrimSpace(thinkingPattern.ReplaceAllString(content, ""))
}

// Outcome classifies a Send error for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrProtocol):
		return "protocol"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream"
	default:
		return "error"
	}
}
