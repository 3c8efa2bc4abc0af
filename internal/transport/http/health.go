package http

import (
	"context"
	"net/http"
	"time"

	"ambient-quiz-service/internal/logging"
)

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function, e.g. a client's Ping, to Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

type healthResult struct {
	Status string `json:"status"`
}

// HealthResponse maps each dependency name to its status.
type HealthResponse map[string]healthResult

func handleHealth(checks map[string]Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		results := make(HealthResponse, len(checks)+1)
		results["service"] = healthResult{Status: "ok"}
		status := http.StatusOK

		for name, c := range checks {
			if err := c.Check(ctx); err != nil {
				logging.WithContext(ctx).WithError(err).WithField("name", name).Error("health check failed")
				results[name] = healthResult{Status: "error"}
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = healthResult{Status: "ok"}
		}

		writeJSON(w, status, results)
	}
}
