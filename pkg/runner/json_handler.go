package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/birocrat/pkg/domain"
)

// JSONHandler implements IOHandler for newline-delimited JSON, one event per
// line out and one response per line in. Events are tagged with "type":
// question, rejected, done, notice.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder
}

// jsonEvent is the output line format.
type jsonEvent struct {
	Type       string           `json:"type"`
	Question   *domain.Question `json:"question,omitempty"`
	Suggestion *domain.Answer   `json:"suggestion,omitempty"`
	Message    string           `json:"message,omitempty"`
	Result     json.RawMessage  `json:"result,omitempty"`
}

// jsonResponse is the input line format.
type jsonResponse struct {
	Text     *string  `json:"text"`
	Selected []string `json:"selected"`
	Back     int      `json:"back"`
	Quit     bool     `json:"quit"`
}

// NewJSONHandler creates a handler for JSON lines IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
}

// Ask emits the question event and decodes one response line.
func (h *JSONHandler) Ask(ctx context.Context, q domain.Question, suggestion *domain.Answer) (Input, error) {
	if err := h.Encoder.Encode(jsonEvent{Type: "question", Question: &q, Suggestion: suggestion}); err != nil {
		return Input{}, err
	}

	line, err := h.Reader.ReadString('\n')
	if err != nil && (line == "" || err != io.EOF) {
		return Input{}, err
	}

	var resp jsonResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &resp); err != nil {
		return Input{}, fmt.Errorf("decoding response line: %w", err)
	}

	switch {
	case resp.Quit:
		return Input{Quit: true}, nil
	case resp.Back > 0:
		return Input{Back: resp.Back}, nil
	case resp.Selected != nil:
		ans := domain.SelectedAnswer(resp.Selected...)
		return Input{Answer: &ans}, nil
	case resp.Text != nil:
		ans := domain.TextAnswer(*resp.Text)
		return Input{Answer: &ans}, nil
	default:
		return Input{}, fmt.Errorf("response line carries neither an answer nor a command")
	}
}

// Reject emits a rejection event.
func (h *JSONHandler) Reject(ctx context.Context, message string) error {
	return h.Encoder.Encode(jsonEvent{Type: "rejected", Message: message})
}

// Finish emits the final result event.
func (h *JSONHandler) Finish(ctx context.Context, result json.RawMessage) error {
	return h.Encoder.Encode(jsonEvent{Type: "done", Result: result})
}

// Notify emits a notice event.
func (h *JSONHandler) Notify(ctx context.Context, msg string) error {
	return h.Encoder.Encode(jsonEvent{Type: "notice", Message: msg})
}
