// Package http exposes the form session host as a JSON HTTP API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/birocrat"
	"github.com/aretw0/birocrat/api"
	"github.com/aretw0/birocrat/internal/logging"
	"github.com/aretw0/birocrat/pkg/domain"
	"github.com/aretw0/birocrat/pkg/host"
	"github.com/aretw0/birocrat/pkg/runner"
)

// Server serves the session API over a host.
type Server struct {
	host    *host.Host
	logger  *slog.Logger
	metrics *metrics
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegisterer sets the prometheus registerer for the server's metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) {
		s.metrics = newMetrics(reg)
	}
}

// New creates a server over the given host. The embedded OpenAPI document is
// validated at construction so a malformed spec fails loudly at startup
// rather than in a client.
func New(h *host.Host, opts ...Option) (*Server, error) {
	s := &Server{
		host:   h,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newMetrics(prometheus.DefaultRegisterer)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(api.Spec)
	if err != nil {
		return nil, fmt.Errorf("loading OpenAPI spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validating OpenAPI spec: %w", err)
	}
	return s, nil
}

// Handler builds the chi router for the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/info", s.handleInfo)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", s.handleSpec)

	r.Get("/forms", s.handleListForms)
	r.Post("/forms/{form}/sessions", s.handleStartSession)

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleDescribe)
		r.Delete("/", s.handleDrop)
		r.Get("/question", s.handleQuestion)
		r.Post("/answer", s.handleAnswer)
		r.Post("/rewind", s.handleRewind)
		r.Get("/history", s.handleHistory)
		r.Get("/suggestions/{qid}", s.handleSuggestion)
		r.Get("/result", s.handleResult)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// pollResponse is the wire form of an engine poll.
type pollResponse struct {
	SessionID  string           `json:"session_id,omitempty"`
	Question   *domain.Question `json:"question,omitempty"`
	Suggestion *domain.Answer   `json:"suggestion,omitempty"`
	Rejection  string           `json:"rejection,omitempty"`
	Done       bool             `json:"done"`
	Result     json.RawMessage  `json:"result,omitempty"`
}

func pollToResponse(poll *birocrat.Poll) pollResponse {
	return pollResponse{
		Question:   poll.Question,
		Suggestion: poll.Suggestion,
		Rejection:  poll.Rejection,
		Done:       poll.Done,
		Result:     poll.Result,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "birocrat-http",
		"version": birocrat.Version,
	})
}

func (s *Server) handleSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/yaml")
	w.Write(api.Spec)
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	bundles, err := s.host.ListForms()
	if err != nil {
		s.writeError(w, err)
		return
	}

	type formInfo struct {
		Name        string `json:"name"`
		Title       string `json:"title,omitempty"`
		Description string `json:"description,omitempty"`
	}
	forms := make([]formInfo, len(bundles))
	for i, b := range bundles {
		forms[i] = formInfo{
			Name:        b.Manifest.Name,
			Title:       b.Manifest.Title,
			Description: b.Manifest.Description,
		}
	}
	s.writeJSON(w, http.StatusOK, forms)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	form := chi.URLParam(r, "form")

	var body struct {
		Params map[string]any `json:"params"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeBadRequest(w, "invalid request body")
			return
		}
	}

	timer := s.metrics.pollTimer()
	id, poll, err := s.host.StartSession(r.Context(), form, body.Params)
	timer()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.sessionStarted(form)
	s.metrics.pollObserved(poll)

	resp := pollToResponse(poll)
	resp.SessionID = id
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	st, err := s.host.Describe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// Missing sessions delete as a no-op; the verb is idempotent.
	if err := s.host.Drop(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.host.Current(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Answer domain.Answer `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	if body.Answer.Kind == domain.AnswerText {
		clean, err := runner.SanitizeInput(body.Answer.Text)
		if err != nil {
			s.writeBadRequest(w, fmt.Sprintf("invalid input: %v", err))
			return
		}
		body.Answer.Text = clean
	}

	timer := s.metrics.pollTimer()
	poll, err := s.host.Answer(r.Context(), id, body.Answer)
	timer()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.pollObserved(poll)

	s.writeJSON(w, http.StatusOK, pollToResponse(poll))
}

func (s *Server) handleRewind(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Index      *int    `json:"index"`
		QuestionID *string `json:"question_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	var (
		idx int
		q   domain.Question
		err error
	)
	switch {
	case body.Index != nil:
		idx = *body.Index
		q, err = s.host.Rewind(r.Context(), id, idx)
	case body.QuestionID != nil:
		idx, q, err = s.host.RewindToQuestion(r.Context(), id, *body.QuestionID)
	default:
		s.writeBadRequest(w, "rewind needs an index or a question_id")
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"index":    idx,
		"question": q,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.host.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	ans, ok, err := s.host.Suggestion(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "qid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cached answer"})
		return
	}
	s.writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.host.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(result)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps domain errors to status codes: caller mistakes are 422,
// conflicts with the session's lifecycle are 409, missing things are 404,
// and a misbehaving driver is a bad gateway.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAnswerKindMismatch),
		errors.Is(err, domain.ErrInvalidRewindTarget):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSessionDone),
		errors.Is(err, domain.ErrSessionNotDone),
		errors.Is(err, domain.ErrNoPendingQuestion):
		status = http.StatusConflict
	case host.IsNotFound(err):
		status = http.StatusNotFound
	case domain.IsProtocolViolation(err):
		status = http.StatusBadGateway
		s.logger.Error("driver protocol violation", "error", err)
	default:
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
