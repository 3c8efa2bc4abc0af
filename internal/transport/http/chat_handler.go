package http

import (
	"context"
	"net/http"
	"time"

	"ambient-quiz-service/internal/chat"
	"ambient-quiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ChatRelay forwards a transcript upstream; *chat.Relay satisfies it.
type ChatRelay interface {
	Send(ctx context.Context, transcript []domain.Message, opts chat.Options) (chat.Reply, error)
}

// ModelLister reads the upstream model catalogue; *chat.Client satisfies it.
type ModelLister interface {
	ListModels(ctx context.Context) (chat.ModelList, error)
	GetModel(ctx context.Context, id string) (chat.Model, error)
}

type ChatHandler struct {
	relay   ChatRelay
	models  ModelLister
	latency func(time.Duration)
}

func NewChatHandler(relay ChatRelay, models ModelLister, latency func(time.Duration)) *ChatHandler {
	if latency == nil {
		latency = func(time.Duration) {}
	}
	return &ChatHandler{relay: relay, models: models, latency: latency}
}

// ChatRequest carries the whole transcript; the server keeps no chat state.
type ChatRequest struct {
	Messages            []domain.Message `json:"messages"`
	Model               string           `json:"model,omitempty"`
	Temperature         *float64         `json:"temperature,omitempty"`
	MaxCompletionTokens int              `json:"max_completion_tokens,omitempty"`
	Mode                chat.Mode        `json:"mode,omitempty"`
	EmitVerified        bool             `json:"emit_verified,omitempty"`
}

func (h *ChatHandler) Routes(r chi.Router) {
	r.Post("/chat", h.postChat)
	r.Get("/models", h.listModels)
	r.Get("/models/{id}", h.getModel)
}

func (h *ChatHandler) postChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	start := time.Now()
	reply, err := h.relay.Send(r.Context(), req.Messages, chat.Options{
		Model:           req.Model,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxCompletionTokens,
		Mode:            req.Mode,
		EmitVerified:    req.EmitVerified,
	})
	h.latency(time.Since(start))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *ChatHandler) listModels(w http.ResponseWriter, r *http.Request) {
	list, err := h.models.ListModels(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ChatHandler) getModel(w http.ResponseWriter, r *http.Request) {
	model, err := h.models.GetModel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}
