package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/adapsys/enclave/audit"
	"github.com/adapsys/enclave/logging"
	"github.com/adapsys/enclave/queue"
	"github.com/adapsys/enclave/registry"
)

// defaultLogLines bounds GET /logs when no count is requested.
const defaultLogLines = 200

// RequestProcessor is the gateway-shaped dependency of the request route.
type RequestProcessor interface {
	ProcessRequest(ctx context.Context, prompt string) (string, error)
}

// Server exposes the agent core over HTTP.
type Server struct {
	gateway   RequestProcessor
	log       *audit.Log
	registry  *registry.Registry
	queue     *queue.Queue
	heartbeat func()
	logger    logging.Logger
	router    chi.Router
}

// Options hold the Server's injected collaborators.
type Options struct {
	// Audit backs GET /logs. Optional; the route 404s without it.
	Audit *audit.Log
	// Registry backs the module routes. Optional.
	Registry *registry.Registry
	// Queue backs POST /enqueue. Optional.
	Queue *queue.Queue
	// Heartbeat backs GET /events/heartbeat, triggering one liveness
	// publish on demand. Optional.
	Heartbeat func()
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// New builds a Server around the gateway.
func New(gateway RequestProcessor, optFns ...func(o *Options)) *Server {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		gateway:   gateway,
		log:       opts.Audit,
		registry:  opts.Registry,
		queue:     opts.Queue,
		heartbeat: opts.Heartbeat,
		logger:    opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Post("/request", s.handleRequest)
	r.Get("/logs", s.handleLogs)
	r.Get("/modules", s.handleListModules)
	r.Get("/modules/{name}", s.handleDescribeModule)
	r.Post("/exec", s.handleExec)
	r.Post("/enqueue", s.handleEnqueue)
	r.Get("/events/heartbeat", s.handleHeartbeat)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type requestBody struct {
	Prompt string `json:"prompt"`
}

type execBody struct {
	Module   string         `json:"module"`
	Args     map[string]any `json:"args"`
	Priority *int           `json:"priority,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"endpoints": []string{
			"GET /healthz",
			"POST /request",
			"GET /logs?lines=200",
			"GET /modules",
			"GET /modules/{name}",
			"POST /exec",
			"POST /enqueue",
			"GET /events/heartbeat",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, _ *http.Request) {
	if s.heartbeat == nil {
		s.writeError(w, http.StatusNotFound, "heartbeat not configured")
		return
	}
	s.heartbeat()
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	var body requestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Prompt == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	result, err := s.gateway.ProcessRequest(r.Context(), body.Prompt)
	if err != nil {
		s.logger.Error("request processing failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "request processing failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "response": result})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.log == nil {
		s.writeError(w, http.StatusNotFound, "audit log not configured")
		return
	}

	n := defaultLogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "lines must be a positive integer")
			return
		}
		n = parsed
	}

	lines, err := s.log.Tail(n)
	if err != nil {
		s.logger.Error("tail audit log failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not read log")
		return
	}
	if lines == nil {
		lines = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

func (s *Server) handleListModules(w http.ResponseWriter, _ *http.Request) {
	if s.registry == nil {
		s.writeError(w, http.StatusNotFound, "registry not configured")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"modules": s.registry.List()})
}

func (s *Server) handleDescribeModule(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.writeError(w, http.StatusNotFound, "registry not configured")
		return
	}
	entry, err := s.registry.Describe(chi.URLParam(r, "name"))
	if errors.Is(err, registry.ErrNotRegistered) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "describe failed")
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.writeError(w, http.StatusNotFound, "registry not configured")
		return
	}

	var body execBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.registry.Execute(r.Context(), body.Module, body.Args)
	if errors.Is(err, registry.ErrNotRegistered) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil || s.queue == nil {
		s.writeError(w, http.StatusNotFound, "queue not configured")
		return
	}

	var body execBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := s.registry.Describe(body.Module); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	priority := queue.DefaultPriority
	if body.Priority != nil {
		priority = *body.Priority
	}

	module, args := body.Module, body.Args
	err := s.queue.Enqueue(func() {
		// Queued executions are detached from the HTTP request.
		if _, err := s.registry.Execute(context.Background(), module, args); err != nil {
			s.logger.Warn("queued execution failed", "module", module, "error", err)
		}
	}, priority)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "queued": true})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
