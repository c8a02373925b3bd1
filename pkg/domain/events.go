package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventQuestion EventType = "question"
	EventAnswer   EventType = "answer"
	EventRetry    EventType = "retry"
	EventRewind   EventType = "rewind"
	EventDone     EventType = "done"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// QuestionEvent fires when a question becomes pending.
type QuestionEvent struct {
	EventBase
	QuestionID string       `json:"question_id"`
	Kind       QuestionKind `json:"kind"`
	StepIndex  int          `json:"step_index"`
}

// AnswerEvent fires when an answer is accepted by the driver.
type AnswerEvent struct {
	EventBase
	QuestionID string     `json:"question_id"`
	Kind       AnswerKind `json:"kind"`
	StepIndex  int        `json:"step_index"`
}

// RetryEvent fires when the driver rejects an answer.
type RetryEvent struct {
	EventBase
	QuestionID string `json:"question_id"`
	Message    string `json:"message"`
}

// RewindEvent fires when history is truncated back to an earlier step.
type RewindEvent struct {
	EventBase
	From int `json:"from"`
	To   int `json:"to"`
}

// DoneEvent fires when the session completes.
type DoneEvent struct {
	EventBase
	Steps  int             `json:"steps"`
	Result json.RawMessage `json:"result,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability. All hooks are
// optional and invoked synchronously on the engine's calling goroutine.
type LifecycleHooks struct {
	OnQuestion func(context.Context, *QuestionEvent)
	OnAnswer   func(context.Context, *AnswerEvent)
	OnRetry    func(context.Context, *RetryEvent)
	OnRewind   func(context.Context, *RewindEvent)
	OnDone     func(context.Context, *DoneEvent)
}
