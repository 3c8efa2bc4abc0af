package http

import (
	"encoding/json"
	"net/http"

	"ambient-quiz-service/internal/chat"
	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/logging"
	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

type sessionPath struct {
	ID string `path:"id"`
}

type ticketQuery struct {
	sessionPath
	Filename string `query:"filename"`
}

type shareQuery struct {
	sessionPath
	Caption string `query:"caption"`
}

type selectInput struct {
	sessionPath
	SelectRequest
}

type startInput struct {
	sessionPath
	StartRequest
}

type modelPath struct {
	ID string `path:"id"`
}

type wsQuery struct {
	SessionID string `query:"sessionId" required:"true"`
}

type avatarQuery struct {
	Username string `query:"username" required:"true" pattern:"^[A-Za-z0-9_]{1,15}$"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Ambient Quiz API"
	r.Spec.Info.Version = "1.0.0"
	r.Spec.Info.WithDescription("Quiz sessions, result tickets and the Ambient chat relay.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/quiz
	getQuiz, _ := r.NewOperationContext(http.MethodGet, "/api/quiz")
	getQuiz.SetSummary("Question set")
	getQuiz.SetDescription("Questions without answers, plus the achievement tiers.")
	getQuiz.AddRespStructure(domain.PublicQuiz{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getQuiz)

	// POST /api/quiz/sessions
	createSession, _ := r.NewOperationContext(http.MethodPost, "/api/quiz/sessions")
	createSession.SetSummary("Start a quiz session")
	createSession.AddReqStructure(StartRequest{})
	createSession.AddRespStructure(domain.SessionView{}, openapi.WithHTTPStatus(http.StatusCreated))
	createSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(createSession)

	// GET /api/quiz/sessions/{id}
	getSession, _ := r.NewOperationContext(http.MethodGet, "/api/quiz/sessions/{id}")
	getSession.SetSummary("Session snapshot")
	getSession.AddReqStructure(sessionPath{})
	getSession.AddRespStructure(domain.SessionView{}, openapi.WithHTTPStatus(http.StatusOK))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getSession)

	// DELETE /api/quiz/sessions/{id}
	endSession, _ := r.NewOperationContext(http.MethodDelete, "/api/quiz/sessions/{id}")
	endSession.SetSummary("End a session")
	endSession.AddReqStructure(sessionPath{})
	endSession.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	endSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(endSession)

	// POST /api/quiz/sessions/{id}/start
	startSession, _ := r.NewOperationContext(http.MethodPost, "/api/quiz/sessions/{id}/start")
	startSession.SetSummary("Start again after a restart")
	startSession.AddReqStructure(startInput{})
	startSession.AddRespStructure(domain.SessionView{}, openapi.WithHTTPStatus(http.StatusOK))
	startSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(startSession)

	// POST /api/quiz/sessions/{id}/select
	selectOption, _ := r.NewOperationContext(http.MethodPost, "/api/quiz/sessions/{id}/select")
	selectOption.SetSummary("Select an option")
	selectOption.SetDescription("Ignored while the explanation is shown.")
	selectOption.AddReqStructure(selectInput{})
	selectOption.AddRespStructure(domain.SessionView{}, openapi.WithHTTPStatus(http.StatusOK))
	selectOption.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	selectOption.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(selectOption)

	// POST /api/quiz/sessions/{id}/submit
	submit, _ := r.NewOperationContext(http.MethodPost, "/api/quiz/sessions/{id}/submit")
	submit.SetSummary("Submit the selected option")
	submit.AddReqStructure(sessionPath{})
	submit.AddRespStructure(SubmitResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	submit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(submit)

	for _, action := range []struct{ path, summary string }{
		{"/api/quiz/sessions/{id}/advance", "Skip the explanation wait"},
		{"/api/quiz/sessions/{id}/restart", "Restart the quiz"},
	} {
		op, _ := r.NewOperationContext(http.MethodPost, action.path)
		op.SetSummary(action.summary)
		op.AddReqStructure(sessionPath{})
		op.AddRespStructure(domain.SessionView{}, openapi.WithHTTPStatus(http.StatusOK))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
		_ = r.AddOperation(op)
	}

	// GET /api/quiz/sessions/{id}/ticket
	getTicket, _ := r.NewOperationContext(http.MethodGet, "/api/quiz/sessions/{id}/ticket")
	getTicket.SetSummary("Download the result ticket")
	getTicket.AddReqStructure(ticketQuery{})
	getTicket.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK), openapi.WithContentType("image/png"))
	getTicket.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	getTicket.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	_ = r.AddOperation(getTicket)

	// GET /api/quiz/sessions/{id}/share
	getShare, _ := r.NewOperationContext(http.MethodGet, "/api/quiz/sessions/{id}/share")
	getShare.SetSummary("Share link")
	getShare.AddReqStructure(shareQuery{})
	getShare.AddRespStructure(ShareResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getShare.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(getShare)

	// GET /ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws")
	getWS.SetSummary("Session stream")
	getWS.SetDescription("WebSocket pushing session snapshots; accepts start, select, submit, advance and restart commands.")
	getWS.AddReqStructure(wsQuery{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols), openapi.WithContentType("text/plain"))
	getWS.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getWS)

	// POST /api/chat
	postChat, _ := r.NewOperationContext(http.MethodPost, "/api/chat")
	postChat.SetSummary("Chat relay")
	postChat.SetDescription("Forwards the transcript to the Ambient API and returns the assistant reply.")
	postChat.AddReqStructure(ChatRequest{})
	postChat.AddRespStructure(chat.Reply{}, openapi.WithHTTPStatus(http.StatusOK))
	postChat.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postChat.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	postChat.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusGatewayTimeout))
	_ = r.AddOperation(postChat)

	// GET /api/models
	getModels, _ := r.NewOperationContext(http.MethodGet, "/api/models")
	getModels.SetSummary("Available models")
	getModels.AddRespStructure(chat.ModelList{}, openapi.WithHTTPStatus(http.StatusOK))
	getModels.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(getModels)

	// GET /api/models/{id}
	getModel, _ := r.NewOperationContext(http.MethodGet, "/api/models/{id}")
	getModel.SetSummary("One model")
	getModel.AddReqStructure(modelPath{})
	getModel.AddRespStructure(chat.Model{}, openapi.WithHTTPStatus(http.StatusOK))
	getModel.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(getModel)

	// GET /api/twitter-avatar
	getAvatar, _ := r.NewOperationContext(http.MethodGet, "/api/twitter-avatar")
	getAvatar.SetSummary("Avatar proxy")
	getAvatar.AddReqStructure(avatarQuery{})
	getAvatar.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK), openapi.WithContentType("image/*"))
	getAvatar.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getAvatar)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	return serveDocument(newOpenAPISpec())
}

// serveDocument encodes doc once. If that fails the route answers 500
// instead of serving an empty document.
func serveDocument(doc any) http.HandlerFunc {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		logging.WithContext(nil).WithError(err).Error("openapi document encoding failed")
		return func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusInternalServerError, "API document unavailable")
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
