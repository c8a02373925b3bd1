package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/birocrat"
)

// Validate loads the form at path and performs the initial poll, checking
// that the driver script parses, exposes an entrypoint, and returns a
// well-formed first outcome.
func Validate(ctx context.Context, path string) error {
	script, name, _, defaults, err := resolveScript(path)
	if err != nil {
		return err
	}

	formOpts := []birocrat.Option{birocrat.WithName(name)}
	if len(defaults) > 0 {
		formOpts = append(formOpts, birocrat.WithParams(defaults))
	}

	form, err := birocrat.New(script, formOpts...)
	if err != nil {
		return fmt.Errorf("loading script: %w", err)
	}

	poll, err := form.Start(ctx)
	if err != nil {
		return fmt.Errorf("initial poll: %w", err)
	}

	switch {
	case poll.Done:
		printSystemMessage("Form '%s' completes immediately without questions.", name)
	default:
		q := poll.Question
		printSystemMessage("Form '%s' starts with question '%s' (%s).", name, q.ID, q.Kind)
	}
	return nil
}
