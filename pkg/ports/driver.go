package ports

import (
	"context"
	"encoding/json"

	"github.com/aretw0/birocrat/pkg/domain"
)

// DriverRuntime invokes a form's decision function. The engine depends only
// on this call shape, not on any particular scripting language.
//
// The very first poll of a session passes (nil, nil). Every later poll passes
// the opaque state stored with the pending step and the answer being tried.
// The runtime must treat state as uninterpreted data and must not share
// mutable state across sessions: independent sessions may run concurrently,
// each with its own isolated execution context.
//
// A hard error return means the call itself could not be completed (script
// crash, malformed return value); the engine maps it to a fatal protocol
// violation. Answer rejection is NOT an error: it is an OutcomeRetry.
type DriverRuntime interface {
	Invoke(ctx context.Context, state json.RawMessage, answer *domain.Answer) (domain.Outcome, error)
}

// DriverFunc adapts a plain function to the DriverRuntime interface.
type DriverFunc func(ctx context.Context, state json.RawMessage, answer *domain.Answer) (domain.Outcome, error)

// Invoke implements DriverRuntime.
func (f DriverFunc) Invoke(ctx context.Context, state json.RawMessage, answer *domain.Answer) (domain.Outcome, error) {
	return f(ctx, state, answer)
}
