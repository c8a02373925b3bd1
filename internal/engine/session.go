package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/birocrat/internal/logging"
	"github.com/aretw0/birocrat/pkg/domain"
	"github.com/aretw0/birocrat/pkg/ports"
)

// Session is the core form engine. It owns the history of questions asked and
// answers given, the answer-suggestion cache, and the rewind protocol, and it
// orchestrates calls to the driver runtime.
//
// A Session is a single mutable unit owned by one caller at a time. It is not
// safe for concurrent use; embedders that need concurrent access must
// serialize it (see pkg/session.Manager).
type Session struct {
	driver ports.DriverRuntime

	// steps is the recorded history. While the session is active the last
	// step is pending (carries no answer); once done, every step is answered.
	steps []domain.Step

	// cache maps question IDs to the most recently accepted answer. It is a
	// suggestion index, not authoritative history: rewinds never touch it.
	cache map[string]domain.Answer

	done   bool
	result json.RawMessage

	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// Option defines a functional option for configuring the Session.
type Option func(*Session)

// WithLogger sets a structured logger for internal debug events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Session) {
		s.hooks = hooks
	}
}

// New creates a session over the given driver runtime. Start must be called
// before any other operation.
func New(driver ports.DriverRuntime, opts ...Option) *Session {
	s := &Session{
		driver: driver,
		cache:  make(map[string]domain.Answer),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore rebuilds a session from a snapshot. The driver must be the same
// decision function the snapshot was produced with; because the driver is
// pure, replaying from the carried opaque states is then exact.
func Restore(driver ports.DriverRuntime, snap *domain.Snapshot, opts ...Option) *Session {
	s := New(driver, opts...)
	s.steps = append(s.steps, snap.Steps...)
	for id, ans := range snap.CachedAnswers {
		s.cache[id] = ans.Clone()
	}
	s.done = snap.Done
	s.result = snap.Result
	return s
}

// Poll is the result of progressing the session, mirroring the three driver
// outcomes. Exactly one of Question, Rejection, or Done/Result is meaningful.
type Poll struct {
	// Question is the new pending question, with any cached answer for its
	// ID offered as a suggestion.
	Question   *domain.Question
	Suggestion *domain.Answer

	// Rejection is the driver's validation message. The same question stays
	// pending and nothing else changed.
	Rejection string

	// Done reports completion; Result is the driver's final value.
	Done   bool
	Result json.RawMessage
}

// Start performs the initial driver poll with no state and no answer.
//
// A driver returning Done on the very first call is degenerate but permitted:
// the session completes immediately. An error outcome on the first call is a
// protocol violation, since there is no answer to reject.
func (s *Session) Start(ctx context.Context) (*Poll, error) {
	if s.Started() {
		return nil, fmt.Errorf("session already started")
	}

	out, err := s.driver.Invoke(ctx, nil, nil)
	if err != nil {
		return nil, domain.NewProtocolError("start", fmt.Errorf("%w: %v", domain.ErrDriverFault, err))
	}

	switch out.Kind {
	case domain.OutcomeQuestion:
		s.appendPending(ctx, *out.Question, out.State)
		return &Poll{Question: out.Question, Suggestion: s.suggestionFor(out.Question.ID)}, nil
	case domain.OutcomeDone:
		s.complete(ctx, out.Result)
		return &Poll{Done: true, Result: out.Result}, nil
	case domain.OutcomeRetry:
		return nil, domain.NewProtocolError("start", fmt.Errorf("%w: %s", domain.ErrFirstPollRejected, out.Message))
	default:
		return nil, domain.NewProtocolError("start", fmt.Errorf("%w: unknown outcome %q", domain.ErrMalformedOutcome, out.Kind))
	}
}

// Started reports whether the initial poll has happened.
func (s *Session) Started() bool { return len(s.steps) > 0 || s.done }

// Done reports whether the session has completed.
func (s *Session) Done() bool { return s.done }

// Result returns the driver's final value once the session is done.
func (s *Session) Result() (json.RawMessage, error) {
	if !s.done {
		return nil, domain.ErrSessionNotDone
	}
	return s.result, nil
}

// CurrentQuestion returns the question of the pending step.
func (s *Session) CurrentQuestion() (domain.Question, error) {
	if s.done {
		return domain.Question{}, domain.ErrSessionDone
	}
	if len(s.steps) == 0 {
		return domain.Question{}, domain.ErrNoPendingQuestion
	}
	return s.steps[len(s.steps)-1].Question, nil
}

// ProgressWithAnswer tries answer against the pending question.
//
// The answer's tag is checked against the question's kind before the driver
// is invoked; a mismatch is a caller bug (ErrAnswerKindMismatch), not a
// driver validation message. On a driver rejection, history, cache, and the
// pending step are all left untouched and the caller is expected to
// re-prompt. On acceptance the answer is recorded, cached under the
// question's ID, and the session either grows a new pending step or
// completes.
func (s *Session) ProgressWithAnswer(ctx context.Context, answer domain.Answer) (*Poll, error) {
	if s.done {
		return nil, domain.ErrSessionDone
	}
	if len(s.steps) == 0 {
		return nil, domain.ErrNoPendingQuestion
	}

	pending := &s.steps[len(s.steps)-1]
	if err := answer.MatchesKind(pending.Question); err != nil {
		return nil, err
	}

	out, err := s.driver.Invoke(ctx, pending.StateBefore, &answer)
	if err != nil {
		return nil, domain.NewProtocolError("progress", fmt.Errorf("%w: %v", domain.ErrDriverFault, err))
	}

	switch out.Kind {
	case domain.OutcomeRetry:
		s.emitRetry(ctx, pending.Question.ID, out.Message)
		return &Poll{Rejection: out.Message}, nil

	case domain.OutcomeQuestion:
		s.recordAnswer(ctx, pending, answer)
		s.appendPending(ctx, *out.Question, out.State)
		return &Poll{Question: out.Question, Suggestion: s.suggestionFor(out.Question.ID)}, nil

	case domain.OutcomeDone:
		s.recordAnswer(ctx, pending, answer)
		s.complete(ctx, out.Result)
		return &Poll{Done: true, Result: out.Result}, nil

	default:
		return nil, domain.NewProtocolError("progress", fmt.Errorf("%w: unknown outcome %q", domain.ErrMalformedOutcome, out.Kind))
	}
}

// RewindTo truncates the history strictly after index and re-marks the step
// at index as pending: its before-state is reused, its recorded answer is
// cleared. The answer cache is NOT modified, so discarded branches keep
// feeding suggestions.
//
// The target must be an already-answered step. Rewinding a done session with
// history is allowed and reopens it; a done session without history (the
// degenerate first-poll completion) has nothing to rewind to.
func (s *Session) RewindTo(ctx context.Context, index int) error {
	max := len(s.steps) - 1
	if !s.done {
		// The last step is pending, not answered.
		max--
	}
	if index < 0 || index > max {
		return fmt.Errorf("%w: position %d, history length %d", domain.ErrInvalidRewindTarget, index, len(s.steps))
	}

	from := len(s.steps) - 1
	s.steps = s.steps[:index+1]
	s.steps[index].Answer = nil
	s.done = false
	s.result = nil

	s.logger.Debug("history rewound", "to", index, "from", from)
	if s.hooks.OnRewind != nil {
		s.hooks.OnRewind(ctx, &domain.RewindEvent{
			EventBase: eventBase(domain.EventRewind),
			From:      from,
			To:        index,
		})
	}
	return nil
}

// RewindToQuestion rewinds to the first occurrence of id in history and
// returns its position. Question IDs are not unique across history; callers
// that need a later occurrence must use RewindTo with an explicit position.
func (s *Session) RewindToQuestion(ctx context.Context, id string) (int, error) {
	for i := range s.steps {
		if s.steps[i].Question.ID == id {
			return i, s.RewindTo(ctx, i)
		}
	}
	return 0, fmt.Errorf("%w: no step with question id %q", domain.ErrInvalidRewindTarget, id)
}

// SuggestedAnswerFor looks up the cached answer for a question ID. It is a
// pure read and does not affect engine state.
func (s *Session) SuggestedAnswerFor(id string) (domain.Answer, bool) {
	ans, ok := s.cache[id]
	if !ok {
		return domain.Answer{}, false
	}
	return ans.Clone(), true
}

// History returns the ordered read-only view of the session's steps.
func (s *Session) History() []domain.HistoryEntry {
	entries := make([]domain.HistoryEntry, len(s.steps))
	for i, step := range s.steps {
		entries[i] = domain.HistoryEntry{Index: i, Question: step.Question, Answer: step.Answer}
	}
	return entries
}

// Len returns the current history length, pending step included.
func (s *Session) Len() int { return len(s.steps) }

// Snapshot captures the full serializable state of the session. The caller
// owns the returned value; bundle metadata (form name, params) is filled in
// by the facade.
func (s *Session) Snapshot() *domain.Snapshot {
	snap := &domain.Snapshot{
		Steps:  append([]domain.Step(nil), s.steps...),
		Done:   s.done,
		Result: s.result,
	}
	if len(s.cache) > 0 {
		snap.CachedAnswers = make(map[string]domain.Answer, len(s.cache))
		for id, ans := range s.cache {
			snap.CachedAnswers[id] = ans.Clone()
		}
	}
	return snap
}

func (s *Session) suggestionFor(id string) *domain.Answer {
	if ans, ok := s.cache[id]; ok {
		clone := ans.Clone()
		return &clone
	}
	return nil
}

func (s *Session) recordAnswer(ctx context.Context, pending *domain.Step, answer domain.Answer) {
	ans := answer.Clone()
	pending.Answer = &ans
	s.cache[pending.Question.ID] = answer.Clone()

	if s.hooks.OnAnswer != nil {
		s.hooks.OnAnswer(ctx, &domain.AnswerEvent{
			EventBase:  eventBase(domain.EventAnswer),
			QuestionID: pending.Question.ID,
			Kind:       answer.Kind,
			StepIndex:  len(s.steps) - 1,
		})
	}
}

func (s *Session) appendPending(ctx context.Context, q domain.Question, state json.RawMessage) {
	s.steps = append(s.steps, domain.Step{Question: q, StateBefore: state})
	s.logger.Debug("question pending", "question_id", q.ID, "kind", q.Kind, "step", len(s.steps)-1)

	if s.hooks.OnQuestion != nil {
		s.hooks.OnQuestion(ctx, &domain.QuestionEvent{
			EventBase:  eventBase(domain.EventQuestion),
			QuestionID: q.ID,
			Kind:       q.Kind,
			StepIndex:  len(s.steps) - 1,
		})
	}
}

func (s *Session) complete(ctx context.Context, result json.RawMessage) {
	s.done = true
	s.result = result
	s.logger.Debug("session done", "steps", len(s.steps))

	if s.hooks.OnDone != nil {
		s.hooks.OnDone(ctx, &domain.DoneEvent{
			EventBase: eventBase(domain.EventDone),
			Steps:     len(s.steps),
			Result:    result,
		})
	}
}

func (s *Session) emitRetry(ctx context.Context, questionID, message string) {
	s.logger.Debug("answer rejected", "question_id", questionID, "message", message)
	if s.hooks.OnRetry != nil {
		s.hooks.OnRetry(ctx, &domain.RetryEvent{
			EventBase:  eventBase(domain.EventRetry),
			QuestionID: questionID,
			Message:    message,
		})
	}
}

func eventBase(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t}
}
