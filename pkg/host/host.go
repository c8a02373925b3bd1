// Package host exposes a multi-session form service over a bundle registry
// and a session manager. The HTTP and MCP adapters are thin layers over it.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/birocrat"
	"github.com/aretw0/birocrat/internal/logging"
	"github.com/aretw0/birocrat/pkg/bundle"
	"github.com/aretw0/birocrat/pkg/domain"
	"github.com/aretw0/birocrat/pkg/session"
)

// Host serves concurrent form sessions. Live forms are kept in memory and
// written through to the session manager's store after every mutation, so a
// restarted host resumes sessions transparently from their snapshots.
type Host struct {
	registry *bundle.Registry
	manager  *session.Manager

	mu    sync.Mutex
	forms map[string]*birocrat.Form

	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// Option configures the Host.
type Option func(*Host)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithLifecycleHooks registers hooks passed to every form the host creates.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(h *Host) {
		h.hooks = hooks
	}
}

// New creates a host over a bundle registry and a session manager.
func New(registry *bundle.Registry, manager *session.Manager, opts ...Option) *Host {
	h := &Host{
		registry: registry,
		manager:  manager,
		forms:    make(map[string]*birocrat.Form),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ListForms returns the available bundles.
func (h *Host) ListForms() ([]*bundle.Bundle, error) {
	return h.registry.List()
}

// StartSession creates a session for the named form and performs the initial
// poll. It returns the new session ID alongside the first poll.
func (h *Host) StartSession(ctx context.Context, form string, params map[string]any) (string, *birocrat.Poll, error) {
	b, err := h.registry.Get(form)
	if err != nil {
		return "", nil, err
	}

	f, err := b.NewForm(params, birocrat.WithLifecycleHooks(h.hooks), birocrat.WithLogger(h.logger))
	if err != nil {
		return "", nil, err
	}

	id := uuid.NewString()
	var poll *birocrat.Poll
	err = h.manager.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		poll, err = f.Start(ctx)
		if err != nil {
			return err
		}
		return h.manager.Store().Save(ctx, id, f.Snapshot())
	})
	if err != nil {
		return "", nil, err
	}

	h.mu.Lock()
	h.forms[id] = f
	h.mu.Unlock()

	h.logger.Info("session started", "session_id", id, "form", form)
	return id, poll, nil
}

// Answer progresses the session with an answer.
func (h *Host) Answer(ctx context.Context, id string, answer domain.Answer) (*birocrat.Poll, error) {
	var poll *birocrat.Poll
	err := h.manager.WithLock(ctx, id, func(ctx context.Context) error {
		f, err := h.form(ctx, id)
		if err != nil {
			return err
		}
		poll, err = f.Answer(ctx, answer)
		if err != nil {
			return err
		}
		return h.manager.Store().Save(ctx, id, f.Snapshot())
	})
	return poll, err
}

// Rewind truncates the session's history back to the given step index.
func (h *Host) Rewind(ctx context.Context, id string, index int) (domain.Question, error) {
	var q domain.Question
	err := h.manager.WithLock(ctx, id, func(ctx context.Context) error {
		f, err := h.form(ctx, id)
		if err != nil {
			return err
		}
		if err := f.Rewind(ctx, index); err != nil {
			return err
		}
		if q, err = f.Current(); err != nil {
			return err
		}
		return h.manager.Store().Save(ctx, id, f.Snapshot())
	})
	return q, err
}

// RewindToQuestion rewinds to the first history step with the given question
// ID and returns the reopened question with its position.
func (h *Host) RewindToQuestion(ctx context.Context, id, questionID string) (int, domain.Question, error) {
	var (
		idx int
		q   domain.Question
	)
	err := h.manager.WithLock(ctx, id, func(ctx context.Context) error {
		f, err := h.form(ctx, id)
		if err != nil {
			return err
		}
		if idx, err = f.RewindToQuestion(ctx, questionID); err != nil {
			return err
		}
		if q, err = f.Current(); err != nil {
			return err
		}
		return h.manager.Store().Save(ctx, id, f.Snapshot())
	})
	return idx, q, err
}

// Current returns the session's pending question.
func (h *Host) Current(ctx context.Context, id string) (domain.Question, error) {
	var q domain.Question
	err := h.manager.WithLock(ctx, id, func(ctx context.Context) error {
		f, err := h.form(ctx, id)
		if err != nil {
			return err
		}
		q, err = f.Current()
		return err
	})
	return q, err
}

// History returns the session's ordered steps.
func (h *Host) History(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	err := h.manager.WithLock(ctx, id, func(ctx context.Context) error {
		f, err := h.form(ctx, id)
		if err != nil {
			return err
		}
		entries = f.History()
		return nil
	})
	return entries, err
}

// Suggestion returns the cached answer for a question ID, if any.
func (h *Host) Suggestion(ctx context.Context, id, questionID string) (domain.Answer, bool, error) {
	var (
		ans domain.Answer
		ok  bool
	)
	err := h.manager.WithLock(ctx, id, func(ctx context.Context) error {
		f, err := h.form(ctx, id)
		if err != nil {
			return err
		}
		ans, ok = f.Suggestion(questionID)
		return nil
	})
	return ans, ok, err
}

// Status describes a session without mutating it.
type Status struct {
	ID   string `json:"id"`
	Form string `json:"form"`
	// Steps counts history entries, the pending one included.
	Steps int  `json:"steps"`
	Done  bool `json:"done"`
}

// Describe reports a session's form, progress, and completion state.
func (h *Host) Describe(ctx context.Context, id string) (Status, error) {
	var st Status
	err := h.manager.WithLock(ctx, id, func(ctx context.Context) error {
		f, err := h.form(ctx, id)
		if err != nil {
			return err
		}
		st = Status{ID: id, Form: f.Name(), Steps: len(f.History()), Done: f.Done()}
		return nil
	})
	return st, err
}

// Result returns the session's final value once done.
func (h *Host) Result(ctx context.Context, id string) (json.RawMessage, error) {
	var result json.RawMessage
	err := h.manager.WithLock(ctx, id, func(ctx context.Context) error {
		f, err := h.form(ctx, id)
		if err != nil {
			return err
		}
		result, err = f.Result()
		return err
	})
	return result, err
}

// Drop deletes the session from memory and from the store.
func (h *Host) Drop(ctx context.Context, id string) error {
	h.mu.Lock()
	delete(h.forms, id)
	h.mu.Unlock()
	return h.manager.Delete(ctx, id)
}

// Sessions lists the IDs known to the store.
func (h *Host) Sessions(ctx context.Context) ([]string, error) {
	return h.manager.List(ctx)
}

// form returns the live form for a session, resuming it from its snapshot
// when this host instance has not seen it yet. Callers hold the session lock.
func (h *Host) form(ctx context.Context, id string) (*birocrat.Form, error) {
	h.mu.Lock()
	f, ok := h.forms[id]
	h.mu.Unlock()
	if ok {
		return f, nil
	}

	snap, err := h.manager.Store().Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap.Form == "" {
		return nil, fmt.Errorf("session %s has no form reference, cannot resume", id)
	}

	b, err := h.registry.Get(snap.Form)
	if err != nil {
		return nil, fmt.Errorf("resuming session %s: %w", id, err)
	}
	script, err := b.Script()
	if err != nil {
		return nil, err
	}

	f, err = birocrat.Resume(script, snap,
		birocrat.WithLifecycleHooks(h.hooks),
		birocrat.WithLogger(h.logger),
	)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	// Another goroutine cannot have resumed it concurrently while the
	// session lock is held, but keep the map authoritative anyway.
	if existing, ok := h.forms[id]; ok {
		f = existing
	} else {
		h.forms[id] = f
	}
	h.mu.Unlock()

	h.logger.Debug("session resumed from store", "session_id", id, "form", snap.Form)
	return f, nil
}

// IsNotFound reports whether err denotes a missing session or form.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, bundle.ErrFormNotFound)
}
