package http

import (
	"fmt"
	"net/http"
	"strconv"

	"ambient-quiz-service/internal/app"
	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/ticket"
	"github.com/go-chi/chi/v5"
)

// QuizHandler exposes the quiz engine and its result tickets over REST.
type QuizHandler struct {
	service *app.QuizService
}

func NewQuizHandler(service *app.QuizService) *QuizHandler {
	return &QuizHandler{service: service}
}

type StartRequest struct {
	Username string `json:"username"`
}

type SelectRequest struct {
	OptionIndex *int `json:"optionIndex"`
}

type SubmitResponse struct {
	Result  domain.AnswerResult `json:"result"`
	Session domain.SessionView  `json:"session"`
}

type ShareResponse struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

// Routes mounts the quiz endpoints under /api/quiz.
func (h *QuizHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.getQuiz)
	r.Post("/sessions", h.createSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.getSession)
		r.Delete("/", h.endSession)
		r.Post("/start", h.startSession)
		r.Post("/select", h.selectOption)
		r.Post("/submit", h.submitAnswer)
		r.Post("/advance", h.advance)
		r.Post("/restart", h.restart)
		r.Get("/ticket", h.downloadTicket)
		r.Get("/share", h.share)
	})
	return r
}

func (h *QuizHandler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.Quiz(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *QuizHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	view, err := h.service.Create(r.Context(), req.Username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/quiz/sessions/"+view.ID)
	writeJSON(w, http.StatusCreated, view)
}

func (h *QuizHandler) getSession(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.service.Get(r.Context(), chi.URLParam(r, "id")))
}

func (h *QuizHandler) startSession(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respond(w, r)(h.service.Start(r.Context(), chi.URLParam(r, "id"), req.Username))
}

func (h *QuizHandler) selectOption(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.OptionIndex == nil {
		writeServiceError(w, r, &domain.ValidationError{Field: "optionIndex", Reason: "is required"})
		return
	}
	h.respond(w, r)(h.service.Select(r.Context(), chi.URLParam(r, "id"), *req.OptionIndex))
}

func (h *QuizHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	result, view, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitResponse{Result: result, Session: view})
}

func (h *QuizHandler) advance(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.service.Advance(r.Context(), chi.URLParam(r, "id")))
}

func (h *QuizHandler) restart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.service.Restart(r.Context(), chi.URLParam(r, "id")))
}

func (h *QuizHandler) endSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.End(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QuizHandler) downloadTicket(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.service.Ticket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	file := ticket.ToDownloadableFile(artifact, r.URL.Query().Get("filename"))
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

// share needs only the graded result, so no image is rendered.
func (h *QuizHandler) share(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	caption := r.URL.Query().Get("caption")
	if caption == "" {
		caption = ticket.DefaultCaption(result)
	}
	writeJSON(w, http.StatusOK, ShareResponse{
		URL:     ticket.ShareLink(domain.TicketArtifact{QuizResult: result}, caption),
		Caption: caption,
	})
}

func (h *QuizHandler) respond(w http.ResponseWriter, r *http.Request) func(domain.SessionView, error) {
	return func(view domain.SessionView, err error) {
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
