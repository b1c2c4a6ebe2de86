// ABOUTME: Supervised flow execution: typing heartbeat, watchdog deadline, cleanup
// ABOUTME: Cleanup runs exactly once via whichever path finishes first

package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/session"
)

// ErrTimeout is returned when a flow body outlives the watchdog.
var ErrTimeout = errors.New("flow timed out")

// Runner wraps flow bodies with the supervisor behaviors selected by
// their Options.
type Runner struct {
	chat     platform.Chat
	sessions *session.Manager

	typingInterval time.Duration
	timeout        time.Duration
	logger         *slog.Logger
}

// NewRunner creates a supervisor. typingInterval and timeout fall back
// to the production defaults (2.5s and 15s) when zero.
func NewRunner(chat platform.Chat, sessions *session.Manager, typingInterval, timeout time.Duration, logger *slog.Logger) *Runner {
	if typingInterval == 0 {
		typingInterval = 2500 * time.Millisecond
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		chat:           chat,
		sessions:       sessions,
		typingInterval: typingInterval,
		timeout:        timeout,
		logger:         logger.With("component", "runner"),
	}
}

// Run executes fn under supervision.
//
// The watchdog never aborts in-flight work: when it fires, the event is
// marked expired so late reply paths become no-ops and late session
// appends are dropped, the fallback is sent unless opted out, and
// cleanup runs. The body's goroutine is left to finish on its own.
func (r *Runner) Run(ctx context.Context, pctx *session.Context, event *platform.Event, name string, fn HandlerFunc, opts Options) error {
	stopTyping := make(chan struct{})
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			close(stopTyping)
			if opts.UnlockOnComplete {
				if thread := pctx.Thread(); thread != nil && thread.Lock != nil {
					if err := thread.Lock.Unlock(context.WithoutCancel(ctx)); err != nil {
						r.logger.Warn("error unlocking session", "flow", name, "error", err)
					}
				}
			}
			if opts.CloseOnComplete {
				pctx.SetForceClose()
			}
		})
	}

	if opts.Typing {
		r.startTyping(ctx, event)
		go func() {
			ticker := time.NewTicker(r.typingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.startTyping(ctx, event)
				case <-stopTyping:
					return
				}
			}
		}()
	}

	done := make(chan error, 1)
	go func() {
		if opts.NewThreadOnStart {
			if _, err := r.sessions.Start(ctx, pctx, event); err != nil {
				done <- fmt.Errorf("starting session: %w", err)
				return
			}
		}
		done <- fn(ctx, pctx, event)
	}()

	watchdog := time.NewTimer(r.timeout)
	defer watchdog.Stop()

	select {
	case err := <-done:
		if err != nil {
			if opts.InformOnError {
				r.fallback(ctx, pctx, event)
				pctx.Expire()
			}
			cleanup()
			return err
		}
		cleanup()
		return nil

	case <-watchdog.C:
		r.logger.Error("flow timeout", "flow", name, "channel", event.Channel, "user", event.User)
		if opts.InformOnTimeout {
			r.fallback(ctx, pctx, event)
		}
		pctx.Expire()
		cleanup()
		return ErrTimeout

	case <-ctx.Done():
		pctx.Expire()
		cleanup()
		return ctx.Err()
	}
}

func (r *Runner) startTyping(ctx context.Context, event *platform.Event) {
	if err := r.chat.StartTyping(ctx, event.Channel); err != nil {
		r.logger.Debug("error sending typing indicator", "error", err)
	}
}

// fallback sends the generic apology pointing the user at the human
// escalation keyword. It bypasses the expire gate on purpose.
func (r *Runner) fallback(ctx context.Context, pctx *session.Context, event *platform.Event) {
	text := fmt.Sprintf("Sorry, I'm having some issues. Type `%shuman` if you need help from a real person.", SummonName(pctx))
	if _, err := r.chat.Reply(context.WithoutCancel(ctx), event.Channel, platform.Response{Text: text}); err != nil {
		r.logger.Error("error sending fallback reply", "error", err, "channel", event.Channel)
	}
}

// SummonName is the prefix a user types to summon the bot: empty in a
// DM, the @-mention otherwise.
func SummonName(pctx *session.Context) string {
	if pctx.DM {
		return ""
	}
	return "@" + pctx.Identities.BotName + " "
}

// SummonVerb describes how to address the bot in prose.
func SummonVerb(dm bool) string {
	if dm {
		return "message"
	}
	return "@mention"
}

// SummonVerbGerund is the -ing form of SummonVerb.
func SummonVerbGerund(dm bool) string {
	if dm {
		return "messaging"
	}
	return "@mentioning"
}
