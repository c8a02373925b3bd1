package domain

// QuestionKind defines how a question is presented and what answer it accepts.
type QuestionKind string

const (
	// QuestionSimple is a single-line text question (an <input> in HTML terms).
	QuestionSimple QuestionKind = "simple"
	// QuestionMultiline is a free-form text question (a <textarea>).
	QuestionMultiline QuestionKind = "multiline"
	// QuestionSelect offers a fixed option set, single or multiple choice.
	QuestionSelect QuestionKind = "select"
)

// Question is a prompt produced by the driver script.
//
// The ID is the driver's identifier for the question, not its position in
// history. The engine treats equal IDs as the same logical question for
// answer-suggestion purposes; a driver reusing an ID for a semantically
// different question breaks that contract and is not detected.
type Question struct {
	ID     string       `json:"id" yaml:"id"`
	Kind   QuestionKind `json:"kind" yaml:"kind"`
	Prompt string       `json:"prompt" yaml:"prompt"`

	// Default is a driver-suggested answer, distinct from the engine's
	// answer cache. For select questions it is guaranteed by the runtime
	// adapter to be one of Options.
	Default string `json:"default,omitempty" yaml:"default,omitempty"`

	// Select configuration (only meaningful when Kind == QuestionSelect).
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
	Multiple bool     `json:"multiple,omitempty" yaml:"multiple,omitempty"`
}

// Clone returns a copy of the question with an independent options slice.
func (q Question) Clone() Question {
	out := q
	if q.Options != nil {
		out.Options = append([]string(nil), q.Options...)
	}
	return out
}
