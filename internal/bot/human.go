// ABOUTME: Human flow: the explicit "human" keyword escalates immediately

package bot

import (
	"context"
	"fmt"

	"github.com/2389/replybot/internal/flow"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/session"
	"github.com/2389/replybot/internal/store"
)

func (e *Engine) humanFlow() flow.Flow {
	return flow.Flow{
		Name: "human",
		Match: func(ctx context.Context, pctx *session.Context, event *platform.Event) bool {
			switch event.Event {
			case platform.EventDirectMessage, platform.EventDirectMention:
				return flow.Matches(flow.Human, pctx, event)
			}
			return false
		},
		Run: func(ctx context.Context, pctx *session.Context, event *platform.Event) error {
			return e.runner.Run(ctx, pctx, event, "human", e.human, flow.DefaultOptions())
		},
	}
}

func (e *Engine) human(ctx context.Context, pctx *session.Context, event *platform.Event) error {
	e.tracker.Human(e.ids, event, pctx.DM)
	if err := e.sessions.Receive(pctx, event); err != nil {
		return err
	}
	if err := e.sessions.Log(pctx, store.EventHumanFlow, nil); err != nil {
		return err
	}

	// Bot-authored messages carry a username instead of a mentionable id.
	user := "<@" + event.User + ">"
	if event.Username != "" {
		user = "@" + event.Username
	}

	const ack = "Sure thing."
	responses := &store.EscalationResponses{
		DM:        ack + " I'll setup a group chat with {{.PointsOfContactAnd}}.",
		Channel:   fmt.Sprintf("%s {{.PointsOfContactOr}} - %s needs your help.", ack, user),
		GroupChat: fmt.Sprintf("%s - {{.PointsOfContactOr}} should be able to help you out. Can you repeat your question here?", user),
	}
	if err := e.escalate(ctx, pctx, event, responses); err != nil {
		return err
	}
	return e.sessions.Commit(ctx, pctx, true)
}
