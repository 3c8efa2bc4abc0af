package http

import (
	"errors"
	"net/http"
	"strconv"

	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/logging"
	"ambient-quiz-service/internal/ticket"
)

func handleAvatar(avatars ticket.AvatarSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.URL.Query().Get("username")
		if username == "" {
			writeError(w, http.StatusBadRequest, "Username parameter is required")
			return
		}
		if err := domain.ValidateUsername(username); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid Twitter username format")
			return
		}

		avatar, err := avatars.FetchAvatar(r.Context(), username)
		if err != nil {
			var unavailable *domain.AvatarUnavailableError
			if errors.As(err, &unavailable) && unavailable.Status != 0 {
				writeError(w, unavailable.Status, "Failed to fetch avatar")
				return
			}
			logging.WithContext(r.Context()).WithError(err).WithField("username", username).Error("avatar proxy failed")
			writeError(w, http.StatusBadGateway, "Failed to fetch avatar")
			return
		}

		w.Header().Set("Content-Type", avatar.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(avatar.Data)))
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(avatar.Data)
	}
}
