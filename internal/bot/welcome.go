// ABOUTME: Welcome flows: channel joins and newly provisioned admins
// ABOUTME: Both run unsupervised; neither belongs to a dialogue session

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2389/replybot/internal/flow"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/session"
	"github.com/2389/replybot/internal/store"
)

func (e *Engine) welcomeFlow() flow.Flow {
	return flow.Flow{
		Name: "welcome",
		Match: func(ctx context.Context, pctx *session.Context, event *platform.Event) bool {
			if event.Type != platform.TypeChannelJoin && event.Type != platform.TypeGroupJoin {
				return false
			}
			// Utility channels the bot is added to for ingest shouldn't
			// get the introduction.
			name, err := e.chat.ChannelName(ctx, event.Channel)
			if err != nil {
				e.logger.Debug("error resolving channel name", "channel", event.Channel, "error", err)
				return true
			}
			prefix := strings.ToLower(e.ids.BotName) + "-file-uploads"
			return !strings.HasPrefix(name, prefix)
		},
		Run: e.welcome,
	}
}

func (e *Engine) welcome(ctx context.Context, pctx *session.Context, event *platform.Event) error {
	purpose, err := e.botPurpose(ctx)
	if err != nil {
		return err
	}

	name := e.formalName()
	summon := flow.SummonVerb(pctx.DM)
	var text string
	if purpose != "" {
		text = fmt.Sprintf("Hi there! I'm %s, an automated FAQ bot for the team. I can answer basic questions related to %s. Just %s me with some keywords, and I can look up the answer.", name, purpose, summon)
	} else {
		text = fmt.Sprintf("Hi there! I'm %s, an automated FAQ bot for the team. Just %s me with some keywords, and I can look up the answer.", name, summon)
	}

	// Give the join event a beat to settle before speaking up.
	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := e.chat.StartTyping(ctx, event.Channel); err != nil {
		e.logger.Debug("error sending typing indicator", "error", err)
	}
	return e.replyWithExample(ctx, pctx, event.Channel, text)
}

func (e *Engine) welcomeAdminFlow() flow.Flow {
	return flow.Flow{
		Name: "welcome_admin",
		Match: func(ctx context.Context, pctx *session.Context, event *platform.Event) bool {
			return event.Type == platform.TypeNewUser
		},
		Run: func(ctx context.Context, pctx *session.Context, event *platform.Event) error {
			if event.UserID == "" {
				return errors.New("user id required for new_user event")
			}
			user, err := e.store.GetUser(ctx, event.UserID)
			if errors.Is(err, store.ErrNotFound) {
				e.logger.Warn("new_user event for unknown user", "user_id", event.UserID)
				return nil
			}
			if err != nil {
				return err
			}
			// Invited members get their tour from whoever invited them.
			if user.Invited {
				return nil
			}
			return e.welcomeAdmin(ctx, pctx, event.UserID)
		},
	}
}
