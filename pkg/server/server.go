// Package server is the minimal HTTP front door exposing a runloop.Agent
// over the network: one conversation per path segment, one POST per
// turn, the turn's events streamed back as Server-Sent Events so a
// remote caller sees tool calls and retries as they happen rather than
// waiting for the whole turn to finish.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hectorcore/agentcore/pkg/logger"
	"github.com/hectorcore/agentcore/pkg/observability"
	"github.com/hectorcore/agentcore/pkg/ratelimit"
	"github.com/hectorcore/agentcore/pkg/runloop"
)

// AgentLookup resolves a conversation ID to the Agent driving it. One
// process can host many conversations; the lookup is the caller's
// concern (in-memory map, session store, whatever backs cmd/agentcore).
type AgentLookup func(conversationID string) (*runloop.Agent, error)

// Server is the HTTP front door. Construct with New and call Start.
type Server struct {
	addr    string
	lookup  AgentLookup
	limiter ratelimit.RateLimiter
	obs     *observability.Observability
	router  chi.Router
	httpSrv *http.Server
}

// New builds a Server listening on addr. limiter may be nil, in which
// case requests are never rate limited at the HTTP layer (the Run Loop
// itself may still gate on a per-conversation limiter set via
// Agent.SetRateLimiter). obs may be nil, in which case no /metrics route
// is registered.
func New(addr string, lookup AgentLookup, limiter ratelimit.RateLimiter, obs *observability.Observability) *Server {
	s := &Server{addr: addr, lookup: lookup, limiter: limiter, obs: obs}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.handleHealth)
	if s.obs != nil && s.obs.Metrics() != nil {
		r.Handle("/metrics", s.obs.Metrics().Handler())
	}
	r.Route("/conversations/{id}", func(r chi.Router) {
		// Registered inside the route so the {id} URL parameter is
		// already resolved when the identifier is read.
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(ratelimit.MiddlewareConfig{
				Limiter: s.limiter,
				IdentifierFunc: func(r *http.Request) (string, ratelimit.Scope) {
					return chi.URLParam(r, "id"), ratelimit.ScopeSession
				},
				ExcludedPaths: []string{"/health", "/metrics"},
			}))
		}
		r.Post("/messages", s.handlePostMessage)
	})
	return r
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE responses can run as long as a turn takes
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type postMessageRequest struct {
	Message string `json:"message"`
}

// sseEvent mirrors runloop.Event in the shape sent over the wire.
type sseEvent struct {
	Kind       string      `json:"kind"`
	Text       string      `json:"text,omitempty"`
	ToolName   string      `json:"tool_name,omitempty"`
	ToolArgs   interface{} `json:"tool_args,omitempty"`
	ToolResult interface{} `json:"tool_result,omitempty"`
	RetryCount int         `json:"retry_count,omitempty"`
	Err        string      `json:"error,omitempty"`
}

var eventKindNames = map[runloop.EventKind]string{
	runloop.EventText:       "text",
	runloop.EventToolCall:   "tool_call",
	runloop.EventToolResult: "tool_result",
	runloop.EventRetrying:   "retrying",
	runloop.EventError:      "error",
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	agent, err := s.lookup(conversationID)
	if err != nil {
		http.Error(w, fmt.Sprintf("conversation %q: %s", conversationID, err), http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for event, err := range agent.ProcessMessage(r.Context(), req.Message) {
		if err != nil {
			writeSSE(w, sseEvent{Kind: "error", Err: err.Error()})
			flusher.Flush()
			return
		}
		writeSSE(w, toWireEvent(event))
		flusher.Flush()
	}
}

func toWireEvent(e runloop.Event) sseEvent {
	wire := sseEvent{Kind: eventKindNames[e.Kind], Text: e.Text, RetryCount: e.RetryCount}
	if e.ToolName != "" {
		wire.ToolName = e.ToolName
		wire.ToolArgs = e.ToolArgs
	}
	if e.ToolResult != nil {
		wire.ToolResult = e.ToolResult
	}
	if e.Err != nil {
		wire.Err = e.Err.Error()
	}
	return wire
}

func writeSSE(w http.ResponseWriter, event sseEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.GetLogger().Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
