// ABOUTME: Help flow: introduces the bot and how to summon a human

package bot

import (
	"context"
	"fmt"

	"github.com/2389/replybot/internal/flow"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/session"
	"github.com/2389/replybot/internal/store"
)

func (e *Engine) helpFlow() flow.Flow {
	return flow.Flow{
		Name: "help",
		Match: func(ctx context.Context, pctx *session.Context, event *platform.Event) bool {
			switch event.Event {
			case platform.EventDirectMessage, platform.EventDirectMention:
				return flow.Matches(flow.Help, pctx, event)
			}
			return false
		},
		Run: func(ctx context.Context, pctx *session.Context, event *platform.Event) error {
			return e.runner.Run(ctx, pctx, event, "help", e.help, flow.DefaultOptions())
		},
	}
}

func (e *Engine) help(ctx context.Context, pctx *session.Context, event *platform.Event) error {
	e.tracker.Help(e.ids, event, pctx.DM)
	if err := e.sessions.Receive(pctx, event); err != nil {
		return err
	}
	if err := e.sessions.Log(pctx, store.EventHelpFlow, nil); err != nil {
		return err
	}

	purpose, err := e.botPurpose(ctx)
	if err != nil {
		return err
	}

	// A missing example shouldn't sink the whole help reply.
	example, err := e.formattedExampleKeywords(ctx, pctx)
	if err != nil {
		e.logger.Error("error fetching example keywords", "error", err)
		example = ""
	}
	if example != "" {
		example += " "
	}

	name := e.formalName()
	summon := flow.SummonVerb(pctx.DM)
	summonName := flow.SummonName(pctx)

	var text string
	if purpose != "" {
		text = fmt.Sprintf("I'm %s, an automated FAQ bot for the team. I can answer basic questions related to %s. Just %s me with some keywords, and I can look up the answer. %sIf you need a real person, just type `%shuman` and I'll ping someone who can help.", name, purpose, summon, example, summonName)
	} else {
		text = fmt.Sprintf("I'm %s, an automated FAQ bot for the team. Just %s me with some keywords, and I can look up the answer. %sIf you need a real person, just type `%shuman` and I'll ping someone who can help.", name, summon, example, summonName)
	}

	_, err = e.reply(ctx, pctx, event.Channel, platform.Response{Text: text})
	return err
}
