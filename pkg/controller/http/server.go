package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/controller/message"
	"github.com/secmon-lab/followup/pkg/service/events"
	"github.com/secmon-lab/followup/pkg/usecase"
	"github.com/secmon-lab/followup/pkg/utils/errutil"
	"github.com/secmon-lab/followup/pkg/utils/logging"
	"github.com/secmon-lab/followup/pkg/utils/safe"
)

// Dispatcher handles message envelopes
type Dispatcher interface {
	Handle(ctx context.Context, req *message.Request) *message.Response
}

type Server struct {
	router             *chi.Mux
	dispatcher         Dispatcher
	uc                 *usecase.UseCases
	hub                *events.Hub
	mcpHandler         http.Handler
	slackInteraction   *SlackInteractionHandler
	slackSigningSecret string
	keepAlive          time.Duration
}

type Options func(*Server)

func WithEventHub(hub *events.Hub) Options {
	return func(s *Server) {
		s.hub = hub
	}
}

func WithMCP(handler http.Handler) Options {
	return func(s *Server) {
		s.mcpHandler = handler
	}
}

func WithSlackInteraction(handler *SlackInteractionHandler, signingSecret string) Options {
	return func(s *Server) {
		s.slackInteraction = handler
		s.slackSigningSecret = signingSecret
	}
}

// WithKeepAlive sets the comment ping interval of event streams
func WithKeepAlive(d time.Duration) Options {
	return func(s *Server) {
		s.keepAlive = d
	}
}

func New(dispatcher Dispatcher, uc *usecase.UseCases, opts ...Options) (*Server, error) {
	if dispatcher == nil {
		return nil, goerr.New("message dispatcher is required")
	}
	if uc == nil {
		return nil, goerr.New("use cases are required")
	}

	r := chi.NewRouter()

	s := &Server{
		router:     r,
		dispatcher: dispatcher,
		uc:         uc,
		keepAlive:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/message", messageHandler(s.dispatcher))
		r.Get("/reminders", remindersHandler(s.uc))
		r.Get("/plan", planHandler(s.uc))
		r.Get("/storage", storageHandler(s.uc))
		if s.hub != nil {
			r.Get("/events", eventsHandler(s.hub, s.keepAlive))
		}
	})

	if s.mcpHandler != nil {
		r.Handle("/mcp", s.mcpHandler)
		r.Handle("/mcp/*", s.mcpHandler)
	}

	// Slack interaction endpoint - No auth required, uses signature verification
	if s.slackInteraction != nil {
		r.Route("/hooks/slack", func(r chi.Router) {
			r.Use(SlackSignatureMiddleware(s.slackSigningSecret))
			r.Post("/interaction", s.slackInteraction.ServeHTTP)
		})
	}

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}
