// Package lua runs driver scripts on an embedded Lua interpreter.
//
// A driver script declares a global function Main(state, answer, params) and
// returns a table {status=..., props=..., state=...}. The runtime translates
// between that protocol and the engine's outcome model, serializing the
// opaque state to JSON between calls so successive invocations can never
// alias each other's tables.
package lua

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"sync"

	lua "github.com/Shopify/go-lua"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/birocrat/internal/logging"
	"github.com/aretw0/birocrat/pkg/domain"
)

// entrypoint is the global function every driver script must declare.
const entrypoint = "Main"

// Runtime is a ports.DriverRuntime backed by a Lua script. A single Lua
// interpreter is reused across invocations; the mutex serializes access
// since raw interpreter states are not goroutine safe.
type Runtime struct {
	mu     sync.Mutex
	state  *lua.State
	params map[string]any
	logger *slog.Logger
}

// Option defines a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithParams sets the static parameter table passed to every script call.
func WithParams(params map[string]any) Option {
	return func(r *Runtime) {
		r.params = params
	}
}

// WithLogger sets a structured logger for script-level debug events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New compiles a driver script from source and verifies it declares Main.
func New(script string, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		state:  lua.NewState(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	lua.OpenLibraries(r.state)
	if err := lua.DoString(r.state, script); err != nil {
		return nil, fmt.Errorf("loading driver script: %w", err)
	}
	if err := r.checkEntrypoint(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewFromFile reads a driver script from disk and compiles it.
func NewFromFile(path string, opts ...Option) (*Runtime, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading driver script: %w", err)
	}
	return New(string(src), opts...)
}

func (r *Runtime) checkEntrypoint() error {
	r.state.Global(entrypoint)
	defer r.state.Pop(1)
	if r.state.TypeOf(-1) != lua.TypeFunction {
		return fmt.Errorf("driver script does not declare a global %s function", entrypoint)
	}
	return nil
}

// Invoke calls Main with the decoded state, the answer, and the parameter
// table, then translates the returned table into an outcome.
func (r *Runtime) Invoke(ctx context.Context, state json.RawMessage, answer *domain.Answer) (domain.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.Outcome{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.state
	top := l.Top()
	defer l.SetTop(top)

	l.Global(entrypoint)

	if state == nil {
		l.PushNil()
	} else {
		var decoded any
		if err := json.Unmarshal(state, &decoded); err != nil {
			return domain.Outcome{}, fmt.Errorf("decoding driver state: %w", err)
		}
		pushValue(l, decoded)
	}

	pushAnswer(l, answer)

	if r.params == nil {
		l.NewTable()
	} else {
		pushValue(l, r.params)
	}

	if err := l.ProtectedCall(3, 1, 0); err != nil {
		return domain.Outcome{}, fmt.Errorf("driver script: %w", err)
	}

	if l.TypeOf(-1) != lua.TypeTable {
		return domain.Outcome{}, fmt.Errorf("%w: script returned %s, want table",
			domain.ErrMalformedOutcome, lua.TypeNameOf(l, -1))
	}
	ret := tableToMap(l, -1)
	return r.translate(ret)
}

func (r *Runtime) translate(ret map[string]any) (domain.Outcome, error) {
	status, _ := ret["status"].(string)
	r.logger.Debug("driver returned", "status", status)

	switch status {
	case "question":
		q, err := decodeQuestion(ret["props"])
		if err != nil {
			return domain.Outcome{}, err
		}
		next, err := json.Marshal(ret["state"])
		if err != nil {
			return domain.Outcome{}, fmt.Errorf("encoding driver state: %w", err)
		}
		return domain.QuestionOutcome(q, next), nil

	case "error":
		msg, ok := ret["props"].(string)
		if !ok {
			return domain.Outcome{}, fmt.Errorf("%w: error status without a message string",
				domain.ErrMalformedOutcome)
		}
		return domain.RetryOutcome(msg), nil

	case "done":
		result, err := json.Marshal(ret["props"])
		if err != nil {
			return domain.Outcome{}, fmt.Errorf("encoding driver result: %w", err)
		}
		return domain.DoneOutcome(result), nil

	default:
		return domain.Outcome{}, fmt.Errorf("%w: unknown status %q", domain.ErrMalformedOutcome, status)
	}
}

type questionProps struct {
	ID       any      `mapstructure:"id"`
	Type     string   `mapstructure:"type"`
	Text     string   `mapstructure:"text"`
	Default  string   `mapstructure:"default"`
	Options  []string `mapstructure:"options"`
	Multiple bool     `mapstructure:"multiple"`
}

// decodeQuestion validates and converts a question props table. Scripts may
// use numeric IDs; they are canonicalized to strings.
func decodeQuestion(props any) (domain.Question, error) {
	table, ok := props.(map[string]any)
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: question status without a props table",
			domain.ErrMalformedOutcome)
	}

	var p questionProps
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return domain.Question{}, err
	}
	if err := dec.Decode(table); err != nil {
		return domain.Question{}, fmt.Errorf("%w: %v", domain.ErrMalformedOutcome, err)
	}

	id, err := canonicalID(p.ID)
	if err != nil {
		return domain.Question{}, err
	}

	q := domain.Question{
		ID:       id,
		Prompt:   p.Text,
		Default:  p.Default,
		Options:  p.Options,
		Multiple: p.Multiple,
	}

	switch p.Type {
	case "simple":
		q.Kind = domain.QuestionSimple
	case "multiline":
		q.Kind = domain.QuestionMultiline
	case "select":
		q.Kind = domain.QuestionSelect
		if len(p.Options) == 0 {
			return domain.Question{}, fmt.Errorf("%w: select question %q has no options",
				domain.ErrMalformedOutcome, id)
		}
		if p.Default != "" && !slices.Contains(p.Options, p.Default) {
			return domain.Question{}, fmt.Errorf("%w: default %q of question %q is not an option",
				domain.ErrMalformedOutcome, p.Default, id)
		}
	default:
		return domain.Question{}, fmt.Errorf("%w: unknown question type %q",
			domain.ErrMalformedOutcome, p.Type)
	}
	return q, nil
}

func canonicalID(id any) (string, error) {
	switch v := id.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("%w: question without an id", domain.ErrMalformedOutcome)
		}
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case nil:
		return "", fmt.Errorf("%w: question without an id", domain.ErrMalformedOutcome)
	default:
		return "", fmt.Errorf("%w: question id has unsupported type %T", domain.ErrMalformedOutcome, id)
	}
}
