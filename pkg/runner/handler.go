package runner

import (
	"context"
	"encoding/json"

	"github.com/aretw0/birocrat/pkg/domain"
)

// Input is the user's response to a question: an answer, or a loop command.
type Input struct {
	// Answer is set for a regular response.
	Answer *domain.Answer

	// Back asks to rewind the given number of answered steps.
	Back int

	// Quit aborts the loop, leaving the session where it stands.
	Quit bool
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Ask presents a question and reads the response. suggestion carries a
	// previously cached answer for pre-filling, falling back to the
	// question's driver-provided default.
	Ask(ctx context.Context, q domain.Question, suggestion *domain.Answer) (Input, error)

	// Reject relays a driver validation message before the question is
	// asked again.
	Reject(ctx context.Context, message string) error

	// Finish presents the final result.
	Finish(ctx context.Context, result json.RawMessage) error

	// Notify presents a meta-message distinct from form content.
	Notify(ctx context.Context, msg string) error
}
