package birocrat

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aretw0/birocrat/internal/engine"
	luaruntime "github.com/aretw0/birocrat/pkg/adapters/lua"
	"github.com/aretw0/birocrat/pkg/domain"
	"github.com/aretw0/birocrat/pkg/ports"
)

// Version is the library version, also reported by the CLI.
const Version = "0.1.0"

// Poll is the result of starting or progressing a form.
type Poll = engine.Poll

// Form is the high-level entry point for the library. It wraps the internal
// session engine and a driver runtime behind a simplified API for consumers.
type Form struct {
	session *engine.Session
	runtime ports.DriverRuntime

	name   string
	params map[string]any
	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// Option defines a functional option for configuring the Form.
type Option func(*Form)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(f *Form) {
		f.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Form) {
		f.logger = logger
	}
}

// WithRuntime injects a custom driver runtime, bypassing the default Lua
// initialization. The script argument of New is then ignored.
func WithRuntime(rt ports.DriverRuntime) Option {
	return func(f *Form) {
		f.runtime = rt
	}
}

// WithParams sets the static parameters handed to the driver on every call.
func WithParams(params map[string]any) Option {
	return func(f *Form) {
		f.params = params
	}
}

// WithName labels the form; the name is recorded in snapshots so Resume can
// locate the matching driver script.
func WithName(name string) Option {
	return func(f *Form) {
		f.name = name
	}
}

// New creates a form over a Lua driver script given as source text.
// If WithRuntime is provided, script may be empty and Lua is skipped.
func New(script string, opts ...Option) (*Form, error) {
	f := &Form{}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.initRuntime(script, false); err != nil {
		return nil, err
	}
	f.session = engine.New(f.runtime, f.engineOpts()...)
	return f, nil
}

// NewFromFile creates a form over a Lua driver script read from disk.
func NewFromFile(path string, opts ...Option) (*Form, error) {
	f := &Form{}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.initRuntime(path, true); err != nil {
		return nil, err
	}
	f.session = engine.New(f.runtime, f.engineOpts()...)
	return f, nil
}

// Resume rebuilds a form from a snapshot. The script must be the same driver
// the snapshot was produced with; the snapshot's recorded name and params
// are carried over unless overridden by options.
func Resume(script string, snap *domain.Snapshot, opts ...Option) (*Form, error) {
	f := &Form{name: snap.Form, params: snap.Params}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.initRuntime(script, false); err != nil {
		return nil, err
	}
	f.session = engine.Restore(f.runtime, snap, f.engineOpts()...)
	return f, nil
}

// initRuntime sets up the default Lua runtime when none was injected.
// source is script text, or a path when fromFile is set.
func (f *Form) initRuntime(source string, fromFile bool) error {
	if f.runtime != nil {
		return nil
	}

	var luaOpts []luaruntime.Option
	if f.params != nil {
		luaOpts = append(luaOpts, luaruntime.WithParams(f.params))
	}
	if f.logger != nil {
		luaOpts = append(luaOpts, luaruntime.WithLogger(f.logger))
	}

	var (
		rt  *luaruntime.Runtime
		err error
	)
	if fromFile {
		rt, err = luaruntime.NewFromFile(source, luaOpts...)
	} else {
		rt, err = luaruntime.New(source, luaOpts...)
	}
	if err != nil {
		return err
	}
	f.runtime = rt
	return nil
}

func (f *Form) engineOpts() []engine.Option {
	opts := []engine.Option{engine.WithLifecycleHooks(f.hooks)}
	if f.logger != nil {
		opts = append(opts, engine.WithLogger(f.logger))
	}
	return opts
}

// Name returns the form's label, if any.
func (f *Form) Name() string { return f.name }

// Start performs the initial driver poll and returns the first question, or
// an immediate completion for degenerate drivers.
func (f *Form) Start(ctx context.Context) (*Poll, error) {
	return f.session.Start(ctx)
}

// Started reports whether Start has been called.
func (f *Form) Started() bool { return f.session.Started() }

// Answer tries an answer against the current question.
func (f *Form) Answer(ctx context.Context, answer domain.Answer) (*Poll, error) {
	return f.session.ProgressWithAnswer(ctx, answer)
}

// Current returns the pending question.
func (f *Form) Current() (domain.Question, error) {
	return f.session.CurrentQuestion()
}

// Rewind truncates history back to the step at index, making its question
// pending again. The caller is expected to follow up with Current and Answer.
func (f *Form) Rewind(ctx context.Context, index int) error {
	return f.session.RewindTo(ctx, index)
}

// RewindToQuestion rewinds to the first history step with the given
// question ID and returns its position.
func (f *Form) RewindToQuestion(ctx context.Context, id string) (int, error) {
	return f.session.RewindToQuestion(ctx, id)
}

// Suggestion returns the cached answer for a question ID, if any.
func (f *Form) Suggestion(id string) (domain.Answer, bool) {
	return f.session.SuggestedAnswerFor(id)
}

// History returns the ordered list of steps so far.
func (f *Form) History() []domain.HistoryEntry {
	return f.session.History()
}

// Done reports whether the form has completed.
func (f *Form) Done() bool { return f.session.Done() }

// Result returns the driver's final value once the form is done.
func (f *Form) Result() (json.RawMessage, error) {
	return f.session.Result()
}

// Snapshot captures the form's full serializable state for persistence.
func (f *Form) Snapshot() *domain.Snapshot {
	snap := f.session.Snapshot()
	snap.Form = f.name
	snap.Params = f.params
	return snap
}
