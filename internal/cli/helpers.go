// Package cli wires forms, stores, and the runner for the birocrat command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/aretw0/birocrat/internal/logging"
	"github.com/aretw0/birocrat/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows
// retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// createLogger configures the application logger. In debug mode it writes to
// Stderr, keeping Stdout free for the form flow.
func createLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.NewNop()
}

// printSystemMessage prints a standardized system message to stdout.
func printSystemMessage(format string, args ...any) {
	fmt.Printf(">>> %s\n", fmt.Sprintf(format, args...))
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnQuestion: func(ctx context.Context, e *domain.QuestionEvent) {
			logger.Debug("Question", "question_id", e.QuestionID, "kind", e.Kind, "step", e.StepIndex)
		},
		OnAnswer: func(ctx context.Context, e *domain.AnswerEvent) {
			logger.Debug("Answer", "question_id", e.QuestionID, "step", e.StepIndex)
		},
		OnRetry: func(ctx context.Context, e *domain.RetryEvent) {
			logger.Debug("Retry", "question_id", e.QuestionID, "message", e.Message)
		},
		OnRewind: func(ctx context.Context, e *domain.RewindEvent) {
			logger.Debug("Rewind", "from", e.From, "to", e.To)
		},
		OnDone: func(ctx context.Context, e *domain.DoneEvent) {
			logger.Debug("Done", "steps", e.Steps)
		},
	}
}

func isInterrupted(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}

// handleExecutionError normalizes run errors: user interruptions exit cleanly.
func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}

// SessionStorePath resolves the on-disk session store for a project directory.
func SessionStorePath(projectDir string) string {
	if projectDir == "" {
		projectDir = "."
	}
	return filepath.Join(projectDir, ".birocrat", "sessions")
}
