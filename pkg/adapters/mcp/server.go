// Package mcp exposes the form session host as an MCP server, so language
// model agents can fill forms tool call by tool call.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/birocrat"
	"github.com/aretw0/birocrat/internal/logging"
	"github.com/aretw0/birocrat/pkg/domain"
	"github.com/aretw0/birocrat/pkg/host"
	"github.com/aretw0/birocrat/pkg/runner"
)

// PollResponse is the structured result shared by the session tools.
type PollResponse struct {
	SessionID  string           `json:"session_id,omitempty" jsonschema_description:"The session this poll belongs to"`
	Question   *domain.Question `json:"question,omitempty" jsonschema_description:"The pending question, when the form wants input"`
	Suggestion *domain.Answer   `json:"suggestion,omitempty" jsonschema_description:"A previously given answer for the pending question"`
	Rejection  string           `json:"rejection,omitempty" jsonschema_description:"Why the last answer was rejected; the question is asked again"`
	Done       bool             `json:"done" jsonschema_description:"True once the form has produced its final result"`
	Result     json.RawMessage  `json:"result,omitempty" jsonschema_description:"The final value, present when done"`
}

// FormInfo describes an available form bundle.
type FormInfo struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Server wraps a host and exposes it as an MCP server.
type Server struct {
	host      *host.Host
	logger    *slog.Logger
	mcpServer *server.MCPServer
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

// NewServer creates an MCP server over the given host.
func NewServer(h *host.Host, opts ...Option) *Server {
	s := &Server{
		host:      h,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("birocrat-mcp", strings.TrimSpace(birocrat.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: list_forms
	s.mcpServer.AddTool(mcp.NewTool("list_forms",
		mcp.WithDescription("List the forms available to start."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		bundles, err := s.host.ListForms()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing forms: %v", err)), nil
		}
		forms := make([]FormInfo, len(bundles))
		for i, b := range bundles {
			forms[i] = FormInfo{
				Name:        b.Manifest.Name,
				Title:       b.Manifest.Title,
				Description: b.Manifest.Description,
			}
		}
		jsonBytes, _ := json.Marshal(forms)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: start_form
	startTool := mcp.NewTool("start_form",
		mcp.WithDescription("Start a session for a form and get its first question."),
		mcp.WithString("form", mcp.Required(), mcp.Description("Name of the form to start")),
		mcp.WithString("params", mcp.Description("JSON object of parameters passed to the form's script (optional)")),
		mcp.WithOutputSchema[PollResponse](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStartForm))

	// TOOL: answer_question
	answerTool := mcp.NewTool("answer_question",
		mcp.WithDescription("Answer the session's pending question. Use text for simple and multiline questions, selected for select questions."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to progress")),
		mcp.WithString("text", mcp.Description("Free text answer")),
		mcp.WithString("selected", mcp.Description("JSON array of chosen options")),
		mcp.WithOutputSchema[PollResponse](),
	)
	s.mcpServer.AddTool(answerTool, mcp.NewStructuredToolHandler(s.handleAnswer))

	// TOOL: rewind
	rewindTool := mcp.NewTool("rewind",
		mcp.WithDescription("Reopen an earlier question. Later answers are discarded but kept as suggestions."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to rewind")),
		mcp.WithString("question_id", mcp.Required(), mcp.Description("ID of the question to reopen")),
		mcp.WithOutputSchema[PollResponse](),
	)
	s.mcpServer.AddTool(rewindTool, mcp.NewStructuredToolHandler(s.handleRewind))

	// TOOL: get_history
	s.mcpServer.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("Get the ordered question and answer history of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to inspect")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		entries, err := s.host.History(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("history failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(entries)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: get_result
	s.mcpServer.AddTool(mcp.NewTool("get_result",
		mcp.WithDescription("Get the final result of a completed session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to read")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := s.host.Result(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("result failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(result)), nil
	})

	// TOOL: drop_session
	s.mcpServer.AddTool(mcp.NewTool("drop_session",
		mcp.WithDescription("Delete a session and its stored snapshot."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to delete")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.host.Drop(ctx, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("drop failed: %v", err)), nil
		}
		return mcp.NewToolResultText(`{"dropped":true}`), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleStartForm(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (PollResponse, error) {
	form, _ := args["form"].(string)
	if form == "" {
		return PollResponse{}, fmt.Errorf("form is required")
	}

	var params map[string]any
	if paramsStr, ok := args["params"].(string); ok && paramsStr != "" {
		if err := json.Unmarshal([]byte(paramsStr), &params); err != nil {
			return PollResponse{}, fmt.Errorf("params must be a JSON object: %w", err)
		}
	}

	id, poll, err := s.host.StartSession(ctx, form, params)
	if err != nil {
		return PollResponse{}, fmt.Errorf("start failed: %w", err)
	}

	resp := pollToResponse(poll)
	resp.SessionID = id
	return resp, nil
}

func (s *Server) handleAnswer(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (PollResponse, error) {
	id, _ := args["session_id"].(string)
	if id == "" {
		return PollResponse{}, fmt.Errorf("session_id is required")
	}

	answer, err := answerFromArgs(args)
	if err != nil {
		return PollResponse{}, err
	}

	poll, err := s.host.Answer(ctx, id, answer)
	if err != nil {
		return PollResponse{}, fmt.Errorf("answer failed: %w", err)
	}

	resp := pollToResponse(poll)
	resp.SessionID = id
	return resp, nil
}

func (s *Server) handleRewind(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (PollResponse, error) {
	id, _ := args["session_id"].(string)
	questionID, _ := args["question_id"].(string)
	if id == "" || questionID == "" {
		return PollResponse{}, fmt.Errorf("session_id and question_id are required")
	}

	_, q, err := s.host.RewindToQuestion(ctx, id, questionID)
	if err != nil {
		return PollResponse{}, fmt.Errorf("rewind failed: %w", err)
	}

	resp := PollResponse{SessionID: id, Question: &q}
	if ans, ok, err := s.host.Suggestion(ctx, id, questionID); err == nil && ok {
		resp.Suggestion = &ans
	}
	return resp, nil
}

func answerFromArgs(args map[string]interface{}) (domain.Answer, error) {
	if selectedStr, ok := args["selected"].(string); ok && selectedStr != "" {
		var selected []string
		if err := json.Unmarshal([]byte(selectedStr), &selected); err != nil {
			return domain.Answer{}, fmt.Errorf("selected must be a JSON array of strings: %w", err)
		}
		return domain.SelectedAnswer(selected...), nil
	}

	text, ok := args["text"].(string)
	if !ok {
		return domain.Answer{}, fmt.Errorf("either text or selected is required")
	}
	clean, err := runner.SanitizeInput(text)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("input rejected: %w", err)
	}
	return domain.TextAnswer(clean), nil
}

func pollToResponse(poll *birocrat.Poll) PollResponse {
	return PollResponse{
		Question:   poll.Question,
		Suggestion: poll.Suggestion,
		Rejection:  poll.Rejection,
		Done:       poll.Done,
		Result:     poll.Result,
	}
}

func (s *Server) registerResources() {
	// EXPOSE: birocrat://forms
	s.mcpServer.AddResource(mcp.NewResource("birocrat://forms", "Available Forms",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		bundles, err := s.host.ListForms()
		if err != nil {
			return nil, fmt.Errorf("failed to list forms: %w", err)
		}
		forms := make([]FormInfo, len(bundles))
		for i, b := range bundles {
			forms[i] = FormInfo{
				Name:        b.Manifest.Name,
				Title:       b.Manifest.Title,
				Description: b.Manifest.Description,
			}
		}
		jsonBytes, _ := json.Marshal(forms)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "birocrat://forms",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
