// ABOUTME: Greeting flow: hi/hello/hey/yo or a bare mention

package bot

import (
	"context"
	"fmt"

	"github.com/2389/replybot/internal/flow"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/session"
	"github.com/2389/replybot/internal/store"
)

func (e *Engine) greetFlow() flow.Flow {
	return flow.Flow{
		Name: "greet",
		Match: func(ctx context.Context, pctx *session.Context, event *platform.Event) bool {
			switch event.Event {
			case platform.EventDirectMessage, platform.EventDirectMention:
				return flow.Matches(flow.Greetings, pctx, event)
			case platform.EventMention:
				// A passing mention gets a greeting regardless of text.
				return true
			}
			return false
		},
		Run: func(ctx context.Context, pctx *session.Context, event *platform.Event) error {
			return e.runner.Run(ctx, pctx, event, "greet", e.greet, flow.DefaultOptions())
		},
	}
}

func (e *Engine) greet(ctx context.Context, pctx *session.Context, event *platform.Event) error {
	e.tracker.Greeting(e.ids, event, pctx.DM)
	if err := e.sessions.Receive(pctx, event); err != nil {
		return err
	}
	if err := e.sessions.Log(pctx, store.EventGreetingFlow, nil); err != nil {
		return err
	}

	purpose, err := e.botPurpose(ctx)
	if err != nil {
		return err
	}

	summon := flow.SummonVerb(pctx.DM)
	var text string
	if purpose != "" {
		text = fmt.Sprintf("Hi there! How can I help? Just %s me with some keywords related to %s, and I can look up the answer.", summon, purpose)
	} else {
		text = fmt.Sprintf("Hi there! How can I help? Just %s me with some keywords, and I can look up the answer.", summon)
	}
	if err := e.replyWithExample(ctx, pctx, event.Channel, text); err != nil {
		return err
	}

	// A passing mention isn't an invitation to keep talking.
	if event.Event == platform.EventMention {
		return e.sessions.Commit(ctx, pctx, true)
	}
	return nil
}
