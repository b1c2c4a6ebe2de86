// ABOUTME: Flow value records and the ordered registry that dispatches them
// ABOUTME: First matching flow wins; a failed run still counts as handled

package flow

import (
	"context"
	"log/slog"

	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/session"
)

// MatchFunc decides whether a flow applies to an event. Matching must be
// cheap and side-effect free; lookups that fail should log and decline.
type MatchFunc func(ctx context.Context, pctx *session.Context, event *platform.Event) bool

// HandlerFunc is a flow body.
type HandlerFunc func(ctx context.Context, pctx *session.Context, event *platform.Event) error

// Flow is one named conversational behavior. Flows are plain value
// records; behavior lives in the two functions.
type Flow struct {
	Name  string
	Match MatchFunc
	Run   HandlerFunc
}

// Options selects the supervisor features a flow runs with. The zero
// value is "everything off"; use DefaultOptions for the common case.
type Options struct {
	// Typing emits typing indicators while the flow runs.
	Typing bool
	// InformOnError sends the generic fallback reply when the body errors.
	InformOnError bool
	// InformOnTimeout sends the fallback reply when the watchdog fires.
	InformOnTimeout bool
	// NewThreadOnStart bootstraps a clean session before the body runs.
	NewThreadOnStart bool
	// UnlockOnComplete releases the session lock during cleanup.
	UnlockOnComplete bool
	// CloseOnComplete marks the session for close on the final commit.
	CloseOnComplete bool
}

// DefaultOptions enables every supervisor feature, matching what a
// normal top-level dialogue flow wants.
func DefaultOptions() Options {
	return Options{
		Typing:           true,
		InformOnError:    true,
		InformOnTimeout:  true,
		NewThreadOnStart: true,
		UnlockOnComplete: true,
		CloseOnComplete:  true,
	}
}

// Registry holds flows in priority order.
type Registry struct {
	flows  []Flow
	logger *slog.Logger
}

// NewRegistry creates a registry dispatching to the given flows in order.
func NewRegistry(logger *slog.Logger, flows ...Flow) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		flows:  flows,
		logger: logger.With("component", "flows"),
	}
}

// Dispatch tries flows in order and runs the first that matches. A run
// error is logged and swallowed: the event counts as handled (with
// error), never retried against later flows. Returns whether any flow
// matched.
func (r *Registry) Dispatch(ctx context.Context, pctx *session.Context, event *platform.Event) bool {
	for _, f := range r.flows {
		if !f.Match(ctx, pctx, event) {
			continue
		}
		r.logger.Debug("running flow", "flow", f.Name, "event", event.Event)
		if err := f.Run(ctx, pctx, event); err != nil {
			r.logger.Error("error running flow",
				"flow", f.Name,
				"error", err,
				"channel", event.Channel,
				"user", event.User)
		}
		return true
	}
	return false
}
