package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/birocrat"
	"github.com/aretw0/birocrat/internal/presentation/tui"
	"github.com/aretw0/birocrat/pkg/adapters/file"
	"github.com/aretw0/birocrat/pkg/bundle"
	"github.com/aretw0/birocrat/pkg/domain"
	"github.com/aretw0/birocrat/pkg/runner"
)

// RunSession executes a single form session on the terminal.
func RunSession(opts RunOptions, params map[string]any) error {
	logger := createLogger(opts.Debug)

	if !opts.JSON && !opts.Headless {
		tui.PrintBanner(birocrat.Version)
	}

	formOpts := []birocrat.Option{birocrat.WithLogger(logger)}
	if opts.Debug {
		formOpts = append(formOpts, birocrat.WithLifecycleHooks(createDebugHooks(logger)))
	}

	store, resumed, form, err := loadForm(opts, params, formOpts)
	if err != nil {
		return err
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	quiet := opts.JSON || opts.Headless
	if resumed && !quiet {
		printSystemMessage("Resuming session '%s'...", opts.SessionID)
	} else if opts.SessionID != "" && !quiet {
		printSystemMessage("Session '%s' active.", opts.SessionID)
	}

	runnerOpts := []runner.Option{runner.WithLogger(logger)}
	if opts.SessionID != "" {
		runnerOpts = append(runnerOpts,
			runner.WithSessionID(opts.SessionID),
			runner.WithStore(store),
		)
	}
	if opts.JSON {
		runnerOpts = append(runnerOpts, runner.WithHandler(runner.NewJSONHandler(os.Stdin, os.Stdout)))
	} else if !opts.Headless {
		handler := runner.NewTextHandler(nil, nil, runner.WithTextRenderer(tui.NewRenderer()))
		runnerOpts = append(runnerOpts, runner.WithHandler(handler))
	}

	r := runner.New(form, runnerOpts...)
	_, runErr := r.Run(sigCtx)

	if !quiet {
		logCompletion(runErr, sigCtx.Signal())
	}
	if errors.Is(runErr, runner.ErrAborted) {
		return nil
	}
	return handleExecutionError(runErr)
}

func logCompletion(err error, sig os.Signal) {
	switch {
	case err == nil:
		printSystemMessage("Form completed.")
	case errors.Is(err, runner.ErrAborted):
		printSystemMessage("Session left. Run again to resume.")
	case isInterrupted(err):
		if sig == os.Interrupt {
			fmt.Printf("[CTRL+C]\n")
		}
		printSystemMessage("Interrupted.")
	}
}

// loadForm resolves the path into a form, resuming from a stored snapshot
// when a session ID names one.
func loadForm(opts RunOptions, params map[string]any, formOpts []birocrat.Option) (*file.Store, bool, *birocrat.Form, error) {
	script, name, projectDir, defaults, err := resolveScript(opts.Path)
	if err != nil {
		return nil, false, nil, err
	}
	params = mergeParams(defaults, params)

	var store *file.Store
	if opts.SessionID != "" {
		store = file.New(SessionStorePath(projectDir))

		snap, err := store.Load(context.Background(), opts.SessionID)
		if err == nil {
			form, err := birocrat.Resume(script, snap, formOpts...)
			if err != nil {
				return nil, false, nil, fmt.Errorf("resuming session: %w", err)
			}
			return store, true, form, nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, false, nil, fmt.Errorf("loading session: %w", err)
		}
	}

	formOpts = append(formOpts, birocrat.WithName(name), birocrat.WithParams(params))
	form, err := birocrat.New(script, formOpts...)
	if err != nil {
		return nil, false, nil, err
	}
	return store, false, form, nil
}

// resolveScript accepts a bundle directory or a bare Lua script path and
// returns the script source, form name, project directory, and the bundle's
// default parameters.
func resolveScript(path string) (script, name, projectDir string, defaults map[string]any, err error) {
	if path == "" {
		path = "."
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", "", "", nil, fmt.Errorf("cannot open %s: %w", path, err)
	}

	if info.IsDir() {
		b, err := bundle.Load(path)
		if err != nil {
			return "", "", "", nil, err
		}
		script, err := b.Script()
		if err != nil {
			return "", "", "", nil, err
		}
		return script, b.Manifest.Name, path, b.Manifest.Params, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", "", nil, err
	}
	name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return string(raw), name, filepath.Dir(path), nil, nil
}

func mergeParams(defaults, params map[string]any) map[string]any {
	if len(defaults) == 0 {
		return params
	}
	merged := make(map[string]any, len(defaults)+len(params))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// ResetSession clears the stored snapshot for the given ID.
func ResetSession(path, sessionID string) {
	projectDir := path
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		projectDir = filepath.Dir(path)
	}
	store := file.New(SessionStorePath(projectDir))
	_ = store.Delete(context.Background(), sessionID)
}
