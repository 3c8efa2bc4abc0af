package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"ambient-quiz-service/internal/app"
	"ambient-quiz-service/internal/logging"
	"ambient-quiz-service/internal/ticket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/swaggest/swgui/v5emb"
)

// RequestObserver receives one sample per served request; *telemetry.Metrics satisfies it.
type RequestObserver interface {
	ObserveHTTP(route string, status int, d time.Duration)
}

// Deps are the collaborators the router dispatches to. Chat, Avatars and
// Metrics may be nil, in which case their routes are not mounted.
type Deps struct {
	Quiz    *app.QuizService
	Chat    *ChatHandler
	Avatars ticket.AvatarSource
	Checks  map[string]Checker
	Metrics http.Handler
	Observe RequestObserver
}

// NewRouter builds the full HTTP surface of the service.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(deps.Observe))
	r.Use(middleware.Recoverer)

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Ambient Quiz API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(deps.Checks))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Get("/ws", NewWSHandler(deps.Quiz).ServeWS)
	r.Route("/api", func(r chi.Router) {
		r.Mount("/quiz", NewQuizHandler(deps.Quiz).Routes())
		if deps.Chat != nil {
			deps.Chat.Routes(r)
		}
		if deps.Avatars != nil {
			r.Get("/twitter-avatar", handleAvatar(deps.Avatars))
		}
	})
	return r
}

type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func NewServer(cfg ServerConfig, handler http.Handler) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	logging.WithContext(ctx).WithField("addr", ln.Addr().String()).Info("starting quiz service")

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(observe RequestObserver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					// hijacked websocket connections never write a status
					status = http.StatusSwitchingProtocols
				}
				route := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				if observe != nil {
					observe.ObserveHTTP(route, status, time.Since(start))
				}
				logging.WithContext(r.Context()).WithFields(logrus.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"route":       route,
					"status":      status,
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
				}).Info("http request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
