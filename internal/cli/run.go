package cli

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	Path      string // Bundle directory or bare .lua script
	Headless  bool
	JSON      bool
	Debug     bool
	Params    []string // key=value pairs
	ParamsRaw string   // Raw JSON object, merged over Params
	SessionID string
	Fresh     bool
}

// Execute handles the run command, resolving parameters and dispatching to
// the session loop.
func Execute(opts RunOptions) error {
	params, err := resolveParams(opts)
	if err != nil {
		return err
	}

	if opts.Fresh && opts.SessionID != "" {
		ResetSession(opts.Path, opts.SessionID)
	}

	return RunSession(opts, params)
}

func resolveParams(opts RunOptions) (map[string]any, error) {
	params := make(map[string]any)
	for _, pair := range opts.Params {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", pair)
		}
		params[key] = value
	}

	if opts.ParamsRaw != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(opts.ParamsRaw), &raw); err != nil {
			return nil, fmt.Errorf("error parsing --params JSON: %w", err)
		}
		for k, v := range raw {
			params[k] = v
		}
	}

	if len(params) == 0 {
		return nil, nil
	}
	return params, nil
}
