package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy decides what a failed collaborator lookup turns into.
type Policy string

const (
	// FailOpen substitutes a placeholder value and carries on.
	FailOpen Policy = "fail-open"
	// FailClosed aborts the operation with ErrUnavailable.
	FailClosed Policy = "fail-closed"
)

// ParsePolicy validates a configured policy name. Empty means FailOpen.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", FailOpen:
		return FailOpen, nil
	case FailClosed:
		return FailClosed, nil
	}
	return "", fmt.Errorf("unknown failure policy %q (want %q or %q)", s, FailOpen, FailClosed)
}

// FallbackRecorder is notified every time a lookup is degraded.
type FallbackRecorder interface {
	RecordFallback(ctx context.Context, collaborator string) error
}

// Guard bounds and isolates individual collaborator calls.
type Guard struct {
	Timeout  time.Duration
	Policy   Policy
	Recorder FallbackRecorder
}

// FailingOpen returns a copy of g that always degrades instead of failing.
func (g Guard) FailingOpen() Guard {
	g.Policy = FailOpen
	return g
}

// Call runs fn with the guard's per-call timeout. When fn fails (including
// ErrNotFound and timeouts) Call returns fallback under FailOpen, or an error
// wrapping ErrUnavailable under FailClosed. Cancellation of ctx itself is
// returned as is.
func Call[T any](ctx context.Context, g Guard, collaborator string, fallback T, fn func(context.Context) (T, error)) (T, error) {
	callCtx := ctx
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	v, err := fn(callCtx)
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil {
		return fallback, ctx.Err()
	}

	if g.Policy == FailClosed {
		return fallback, fmt.Errorf("%s lookup: %w: %w", collaborator, ErrUnavailable, err)
	}

	slog.WarnContext(ctx, "collaborator lookup degraded", "collaborator", collaborator, "error", err)
	if g.Recorder != nil {
		if rerr := g.Recorder.RecordFallback(ctx, collaborator); rerr != nil {
			slog.DebugContext(ctx, "record fallback metric failed", "collaborator", collaborator, "error", rerr)
		}
	}
	return fallback, nil
}
