package domain

import "encoding/json"

// OutcomeKind tags a driver's decision after a poll.
type OutcomeKind string

const (
	// OutcomeQuestion means the driver has another question to ask.
	OutcomeQuestion OutcomeKind = "question"
	// OutcomeRetry means the driver rejected the given answer; the same
	// question stays pending and Message is surfaced for re-prompting.
	OutcomeRetry OutcomeKind = "error"
	// OutcomeDone means the form is complete and Result holds the final value.
	OutcomeDone OutcomeKind = "done"
)

// Outcome is the tagged result of one driver invocation.
//
// For OutcomeQuestion, State is the opaque driver state that becomes the
// "before" state of the new pending step. The engine never inspects it; it is
// kept serialized precisely so later driver calls cannot alias it.
type Outcome struct {
	Kind     OutcomeKind
	Question *Question
	State    json.RawMessage
	Message  string
	Result   json.RawMessage
}

// QuestionOutcome builds an Outcome asking another question.
func QuestionOutcome(q Question, state json.RawMessage) Outcome {
	return Outcome{Kind: OutcomeQuestion, Question: &q, State: state}
}

// RetryOutcome builds an Outcome rejecting the given answer.
func RetryOutcome(message string) Outcome {
	return Outcome{Kind: OutcomeRetry, Message: message}
}

// DoneOutcome builds an Outcome completing the form.
func DoneOutcome(result json.RawMessage) Outcome {
	return Outcome{Kind: OutcomeDone, Result: result}
}
