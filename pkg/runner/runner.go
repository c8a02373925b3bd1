package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/birocrat"
	"github.com/aretw0/birocrat/internal/logging"
	"github.com/aretw0/birocrat/pkg/domain"
	"github.com/aretw0/birocrat/pkg/ports"
)

// ErrAborted is returned when the user quits the loop before completion. The
// session is left as it stands; with a store configured it remains resumable.
var ErrAborted = errors.New("aborted by user")

// Runner drives a form to completion against an IOHandler.
type Runner struct {
	Form      *birocrat.Form
	Handler   IOHandler
	Store     ports.SessionStore
	SessionID string
	Logger    *slog.Logger
}

// New creates a runner for the given form. The default handler is an
// interactive TextHandler on stdin/stdout.
func New(form *birocrat.Form, opts ...Option) *Runner {
	r := &Runner{
		Form:   form,
		Logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(nil, nil)
	}
	return r
}

// Run executes the question loop until the form completes, the user quits,
// or the driver misbehaves. It returns the final result on completion.
func (r *Runner) Run(ctx context.Context) (json.RawMessage, error) {
	poll, err := r.initialPoll(ctx)
	if err != nil {
		return nil, err
	}

	for {
		if poll != nil && poll.Done {
			if err := r.save(ctx); err != nil {
				return nil, err
			}
			if err := r.Handler.Finish(ctx, poll.Result); err != nil {
				return nil, err
			}
			return poll.Result, nil
		}

		if poll != nil && poll.Rejection != "" {
			if err := r.Handler.Reject(ctx, poll.Rejection); err != nil {
				return nil, err
			}
		}

		q, err := r.Form.Current()
		if err != nil {
			return nil, err
		}
		suggestion := r.suggestionFor(poll, q)

		input, err := r.Handler.Ask(ctx, q, suggestion)
		if err != nil {
			return nil, err
		}

		switch {
		case input.Quit:
			r.Logger.Debug("run aborted", "question_id", q.ID)
			return nil, ErrAborted

		case input.Back > 0:
			poll, err = r.rewind(ctx, input.Back)
			if err != nil {
				return nil, err
			}

		default:
			poll, err = r.Form.Answer(ctx, *input.Answer)
			if err != nil {
				return nil, err
			}
			if poll.Rejection == "" {
				if err := r.save(ctx); err != nil {
					return nil, err
				}
			}
		}
	}
}

// initialPoll starts the form, or picks up where a resumed session stands.
func (r *Runner) initialPoll(ctx context.Context) (*birocrat.Poll, error) {
	if !r.Form.Started() {
		poll, err := r.Form.Start(ctx)
		if err != nil {
			return nil, err
		}
		if err := r.save(ctx); err != nil {
			return nil, err
		}
		return poll, nil
	}

	if r.Form.Done() {
		result, err := r.Form.Result()
		if err != nil {
			return nil, err
		}
		return &birocrat.Poll{Done: true, Result: result}, nil
	}

	if err := r.Handler.Notify(ctx, "resuming session"); err != nil {
		return nil, err
	}
	return nil, nil
}

// rewind steps back over the given number of answered steps and leaves the
// landing question pending.
func (r *Runner) rewind(ctx context.Context, steps int) (*birocrat.Poll, error) {
	pending := len(r.Form.History()) - 1
	target := pending - steps
	if target < 0 {
		target = 0
	}
	if err := r.Form.Rewind(ctx, target); err != nil {
		if errors.Is(err, domain.ErrInvalidRewindTarget) {
			if nerr := r.Handler.Notify(ctx, fmt.Sprintf("cannot go back: %v", err)); nerr != nil {
				return nil, nerr
			}
			return nil, nil
		}
		return nil, err
	}
	if err := r.save(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

// suggestionFor pulls the cached answer for the pending question, falling
// back to the suggestion the engine attached to the poll.
func (r *Runner) suggestionFor(poll *birocrat.Poll, q domain.Question) *domain.Answer {
	if poll != nil && poll.Suggestion != nil {
		return poll.Suggestion
	}
	if ans, ok := r.Form.Suggestion(q.ID); ok {
		return &ans
	}
	return nil
}

func (r *Runner) save(ctx context.Context) error {
	if r.Store == nil || r.SessionID == "" {
		return nil
	}
	if err := r.Store.Save(ctx, r.SessionID, r.Form.Snapshot()); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}
