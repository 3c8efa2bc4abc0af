package http

import (
	"encoding/json"
	"net/http"
	"time"

	"ambient-quiz-service/internal/app"
	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/logging"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const maxInboundBytes = 4 << 10

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	OptionIndex *int `json:"optionIndex"`
}

type startPayload struct {
	Username string `json:"username"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

const (
	msgSession      = "session"
	msgAnswerResult = "answerResult"
	msgEnded        = "ended"
	msgError        = "error"
)

// ServeWS upgrades the request and streams one session: every state change is
// pushed as a "session" message, and select/submit/advance/restart/start
// commands are accepted from the client.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId")
		return
	}
	// Reject unknown sessions before upgrading so clients get a plain 404.
	if _, err := h.service.Get(r.Context(), sessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	log := logging.WithContext(r.Context()).WithField("session_id", sessionID)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxInboundBytes)

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: msgError, Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections allow one concurrent writer.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				return
			}
			if msg.Type == msgEnded {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(time.Second))
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}
	pushError := func(err error) {
		push(outboundMessage[any]{Type: msgError, Payload: errorPayload{Message: clientMessage(err)}})
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					select {
					case send <- outboundMessage[any]{Type: msgEnded, Payload: errorPayload{Message: "session ended"}}:
					case <-closeSignals:
					case <-writerDone:
					}
					return
				}
				select {
				case send <- outboundMessage[any]{Type: msgSession, Payload: update}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("ws read error")
			}
			break
		}
		ctx := r.Context()
		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				pushError(&domain.ValidationError{Field: "payload", Reason: "invalid start payload"})
				continue
			}
			if _, err := h.service.Start(ctx, sessionID, payload.Username); err != nil {
				pushError(err)
			}
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.OptionIndex == nil {
				pushError(&domain.ValidationError{Field: "payload", Reason: "invalid select payload"})
				continue
			}
			if _, err := h.service.Select(ctx, sessionID, *payload.OptionIndex); err != nil {
				pushError(err)
			}
		case "submit":
			result, _, err := h.service.Submit(ctx, sessionID)
			if err != nil {
				pushError(err)
				continue
			}
			push(outboundMessage[any]{Type: msgAnswerResult, Payload: result})
		case "advance":
			if _, err := h.service.Advance(ctx, sessionID); err != nil {
				pushError(err)
			}
		case "restart":
			if _, err := h.service.Restart(ctx, sessionID); err != nil {
				pushError(err)
			}
		default:
			log.WithFields(logrus.Fields{"type": inbound.Type}).Debug("ws unsupported message")
			pushError(&domain.ValidationError{Field: "type", Reason: "unsupported message type"})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// clientMessage hides internal failure detail from websocket clients.
func clientMessage(err error) string {
	if statusFor(err) >= http.StatusInternalServerError {
		return genericFailure
	}
	return err.Error()
}
