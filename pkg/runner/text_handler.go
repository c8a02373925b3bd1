package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/aretw0/birocrat/pkg/domain"
)

// ContentRenderer transforms question text before display, e.g. markdown to
// styled terminal output.
type ContentRenderer func(string) (string, error)

// TextHandler implements the interactive terminal interface.
type TextHandler struct {
	source      io.Reader
	interactive bool
	Reader      *bufio.Reader
	Writer      io.Writer
	Renderer    ContentRenderer

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextRenderer configures the content renderer.
func WithTextRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for terminal IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		source: r,
		Writer: w,
		Reader: bufio.NewReader(r),
	}
	if f, ok := r.(*os.File); ok {
		h.interactive = term.IsTerminal(int(f.Fd()))
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// initPump starts the background reader. Reading on a separate goroutine
// keeps Ask responsive to context cancellation.
func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err == io.EOF {
				close(h.inputChan)
				return
			}
			h.inputChan <- inputResult{err: err}
			// Backoff so a persistently failing reader cannot spin.
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// readLine reads one sanitized line, re-prompting on sanitizer rejections.
func (h *TextHandler) readLine(ctx context.Context, prompt string) (string, error) {
	h.initPump()
	for {
		fmt.Fprint(h.Writer, prompt)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

// Ask presents the question and reads an answer of the matching kind.
func (h *TextHandler) Ask(ctx context.Context, q domain.Question, suggestion *domain.Answer) (Input, error) {
	h.printPrompt(q)

	for {
		var (
			input Input
			err   error
		)
		switch q.Kind {
		case domain.QuestionSelect:
			input, err = h.askSelect(ctx, q, suggestion)
		case domain.QuestionMultiline:
			input, err = h.askMultiline(ctx, q)
		default:
			input, err = h.askSimple(ctx, q, suggestion)
		}
		if err != nil {
			return Input{}, err
		}
		if input.Answer == nil && input.Back == 0 && !input.Quit {
			// No answer and no usable fallback; ask again.
			continue
		}
		return input, nil
	}
}

func (h *TextHandler) printPrompt(q domain.Question) {
	text := q.Prompt
	if h.Renderer != nil {
		if rendered, err := h.Renderer(text); err == nil {
			text = rendered
		}
	}
	fmt.Fprintln(h.Writer, strings.TrimSpace(text))

	if q.Kind == domain.QuestionSelect {
		for i, opt := range q.Options {
			fmt.Fprintf(h.Writer, "  %d) %s\n", i+1, opt)
		}
		if q.Multiple {
			fmt.Fprintln(h.Writer, "  (choose one or more, comma separated)")
		}
	}
	if q.Kind == domain.QuestionMultiline {
		fmt.Fprintln(h.Writer, "  (finish with a single \".\" on its own line)")
	}
}

func (h *TextHandler) askSimple(ctx context.Context, q domain.Question, suggestion *domain.Answer) (Input, error) {
	line, err := h.readLine(ctx, h.simplePrompt(q, suggestion))
	if err != nil {
		return Input{}, err
	}
	if cmd, ok := parseCommand(line); ok {
		return cmd, nil
	}
	if line == "" {
		if suggestion != nil && suggestion.Kind == domain.AnswerText {
			ans := suggestion.Clone()
			return Input{Answer: &ans}, nil
		}
		if q.Default != "" {
			ans := domain.TextAnswer(q.Default)
			return Input{Answer: &ans}, nil
		}
		return Input{}, nil
	}
	ans := domain.TextAnswer(line)
	return Input{Answer: &ans}, nil
}

func (h *TextHandler) simplePrompt(q domain.Question, suggestion *domain.Answer) string {
	if suggestion != nil && suggestion.Kind == domain.AnswerText && suggestion.Text != "" {
		return fmt.Sprintf("[%s] > ", suggestion.Text)
	}
	if q.Default != "" {
		return fmt.Sprintf("[%s] > ", q.Default)
	}
	return "> "
}

func (h *TextHandler) askMultiline(ctx context.Context, q domain.Question) (Input, error) {
	var lines []string
	for {
		line, err := h.readLine(ctx, "| ")
		if err != nil {
			return Input{}, err
		}
		if len(lines) == 0 {
			if cmd, ok := parseCommand(line); ok {
				return cmd, nil
			}
		}
		if line == "." {
			break
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 && q.Default != "" {
		ans := domain.TextAnswer(q.Default)
		return Input{Answer: &ans}, nil
	}
	ans := domain.TextAnswer(strings.Join(lines, "\n"))
	return Input{Answer: &ans}, nil
}

func (h *TextHandler) askSelect(ctx context.Context, q domain.Question, suggestion *domain.Answer) (Input, error) {
	line, err := h.readLine(ctx, h.selectPrompt(q, suggestion))
	if err != nil {
		return Input{}, err
	}
	if cmd, ok := parseCommand(line); ok {
		return cmd, nil
	}
	if line == "" {
		if suggestion != nil && suggestion.Kind == domain.AnswerSelected {
			ans := suggestion.Clone()
			return Input{Answer: &ans}, nil
		}
		if q.Default != "" {
			ans := domain.SelectedAnswer(q.Default)
			return Input{Answer: &ans}, nil
		}
		return Input{}, nil
	}

	fields := strings.Split(line, ",")
	if !q.Multiple && len(fields) > 1 {
		fmt.Fprintln(h.Writer, "Pick a single option.")
		return Input{}, nil
	}

	var selected []string
	for _, field := range fields {
		choice, ok := resolveOption(q.Options, strings.TrimSpace(field))
		if !ok {
			fmt.Fprintf(h.Writer, "Invalid choice %q.\n", strings.TrimSpace(field))
			return Input{}, nil
		}
		selected = append(selected, choice)
	}
	ans := domain.SelectedAnswer(selected...)
	return Input{Answer: &ans}, nil
}

func (h *TextHandler) selectPrompt(q domain.Question, suggestion *domain.Answer) string {
	if suggestion != nil && suggestion.Kind == domain.AnswerSelected && len(suggestion.Selected) > 0 {
		return fmt.Sprintf("[%s] > ", strings.Join(suggestion.Selected, ","))
	}
	if q.Default != "" {
		return fmt.Sprintf("[%s] > ", q.Default)
	}
	return "> "
}

// resolveOption accepts either a 1-based option number or the option text.
func resolveOption(options []string, field string) (string, bool) {
	if n, err := strconv.Atoi(field); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		return "", false
	}
	for _, opt := range options {
		if opt == field {
			return opt, true
		}
	}
	return "", false
}

// parseCommand recognizes the loop commands ":back [N]" and ":quit".
func parseCommand(line string) (Input, bool) {
	if !strings.HasPrefix(line, ":") {
		return Input{}, false
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return Input{Quit: true}, true
	case ":back", ":b":
		steps := 1
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 {
				steps = n
			}
		}
		return Input{Back: steps}, true
	}
	return Input{}, false
}

// Reject relays a driver validation message.
func (h *TextHandler) Reject(ctx context.Context, message string) error {
	_, err := fmt.Fprintf(h.Writer, "! %s\n", message)
	return err
}

// Finish pretty-prints the final result.
func (h *TextHandler) Finish(ctx context.Context, result json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		fmt.Fprintf(h.Writer, "%s\n", result)
		return nil
	}
	fmt.Fprintf(h.Writer, "%s\n", buf.String())
	return nil
}

// Notify prints a meta-message.
func (h *TextHandler) Notify(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "[birocrat] %s\n", msg)
	return err
}
