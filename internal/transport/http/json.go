package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/logging"
)

const maxBodyBytes = 1 << 20

// genericFailure is what clients see when an upstream call fails; details stay in the logs.
const genericFailure = "Something went wrong. Please try again."

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuizNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs err and answers with its mapped status. Upstream and
// internal failures get a generic message so nothing sensitive leaks.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logging.WithContext(r.Context()).WithError(err).WithField("status", status)
	msg := err.Error()
	switch {
	case status >= http.StatusInternalServerError && errors.Is(err, domain.ErrRender):
		log.Error("ticket rendering failed")
		msg = "Failed to generate ticket"
	case status >= http.StatusInternalServerError:
		log.Error("request failed")
		msg = genericFailure
	default:
		log.Debug("request rejected")
	}
	writeError(w, status, msg)
}
