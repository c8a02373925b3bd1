package domain

import "fmt"

// AnswerKind tags the shape of an Answer.
type AnswerKind string

const (
	// AnswerText answers simple and multiline questions.
	AnswerText AnswerKind = "text"
	// AnswerSelected answers select questions with one or more options.
	AnswerSelected AnswerKind = "selected"
)

// Answer is the user's response to a question. It carries no reference to the
// question it answers; the engine pairs them positionally via the pending Step.
type Answer struct {
	Kind     AnswerKind `json:"kind"`
	Text     string     `json:"text,omitempty"`
	Selected []string   `json:"selected,omitempty"`
}

// TextAnswer builds a textual answer for simple/multiline questions.
func TextAnswer(text string) Answer {
	return Answer{Kind: AnswerText, Text: text}
}

// SelectedAnswer builds an option answer for select questions.
func SelectedAnswer(options ...string) Answer {
	return Answer{Kind: AnswerSelected, Selected: options}
}

// MatchesKind checks that the answer's tag is admissible for the question.
// Option membership is deliberately NOT checked here: that is validation,
// which belongs to the driver script.
func (a Answer) MatchesKind(q Question) error {
	switch q.Kind {
	case QuestionSimple, QuestionMultiline:
		if a.Kind != AnswerText {
			return fmt.Errorf("%w: question %q wants text, got %s", ErrAnswerKindMismatch, q.ID, a.Kind)
		}
	case QuestionSelect:
		if a.Kind != AnswerSelected {
			return fmt.Errorf("%w: question %q wants selected options, got %s", ErrAnswerKindMismatch, q.ID, a.Kind)
		}
		if len(a.Selected) == 0 {
			return fmt.Errorf("%w: question %q requires at least one option", ErrAnswerKindMismatch, q.ID)
		}
		if !q.Multiple && len(a.Selected) != 1 {
			return fmt.Errorf("%w: question %q is single-select, got %d options", ErrAnswerKindMismatch, q.ID, len(a.Selected))
		}
	default:
		return fmt.Errorf("%w: question %q has unknown kind %q", ErrAnswerKindMismatch, q.ID, q.Kind)
	}
	return nil
}

// Clone returns a copy with an independent option slice so cached answers
// cannot be mutated through the original.
func (a Answer) Clone() Answer {
	out := a
	if a.Selected != nil {
		out.Selected = append([]string(nil), a.Selected...)
	}
	return out
}
