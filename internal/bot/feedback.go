// ABOUTME: Feedback flow: thumbs reactions on the bot's own answers
// ABOUTME: Negative feedback offers escalation with the original query

package bot

import (
	"context"

	"github.com/2389/replybot/internal/flow"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/session"
	"github.com/2389/replybot/internal/store"
)

func (e *Engine) feedbackFlow() flow.Flow {
	return flow.Flow{
		Name: "feedback",
		Match: func(ctx context.Context, pctx *session.Context, event *platform.Event) bool {
			return event.Type == platform.TypeReactionAdded
		},
		Run: func(ctx context.Context, pctx *session.Context, event *platform.Event) error {
			// Quiet supervision: reactions get no typing and no fallback
			// chatter, but the session lock still needs releasing.
			return e.runner.Run(ctx, pctx, event, "feedback", e.feedback, flow.Options{UnlockOnComplete: true})
		},
	}
}

func (e *Engine) feedback(ctx context.Context, pctx *session.Context, event *platform.Event) error {
	if event.User == e.ids.BotID || event.Item == nil {
		return nil
	}
	item := event.Item

	shouldRespond, err := e.store.ShouldRespondToReaction(ctx, item.Channel, item.TS)
	if err != nil {
		e.logger.Error("error checking reaction listener", "error", err, "channel", item.Channel, "ts", item.TS)
		shouldRespond = false
	}

	// Only the session owner reacting to the bot's own message counts.
	thread := pctx.Thread()
	if event.ItemUser != e.ids.BotID || thread == nil || thread.Model.UserID != event.User {
		return nil
	}

	positive := event.Reaction == "+1"
	if err := e.sessions.Receive(pctx, event); err != nil {
		return err
	}
	if err := e.sessions.Log(pctx, store.EventFeedback, &store.EventMeta{Positive: &positive}); err != nil {
		return err
	}
	e.tracker.Feedback(e.ids, event, pctx.DM, positive, shouldRespond)

	switch event.Reaction {
	case "+1":
		return e.positiveFeedback(ctx, pctx, item, shouldRespond)
	case "-1":
		return e.negativeFeedback(ctx, pctx, event, item, shouldRespond)
	}
	return nil
}

func (e *Engine) positiveFeedback(ctx context.Context, pctx *session.Context, item *platform.Item, shouldRespond bool) error {
	if err := e.chat.RemoveReaction(ctx, "-1", item.Channel, item.TS); err != nil {
		e.logger.Warn("error removing reaction", "error", err, "channel", item.Channel, "ts", item.TS)
	}
	if err := e.store.ClearReactionListener(ctx, item.Channel, item.TS); err != nil {
		e.logger.Warn("error clearing reaction listener", "error", err)
	}
	if !shouldRespond {
		return nil
	}
	_, err := e.reply(ctx, pctx, item.Channel, platform.Response{Text: "Glad I could help :simple_smile:"})
	return err
}

func (e *Engine) negativeFeedback(ctx context.Context, pctx *session.Context, event *platform.Event, item *platform.Item, shouldRespond bool) error {
	if err := e.chat.RemoveReaction(ctx, "+1", item.Channel, item.TS); err != nil {
		e.logger.Warn("error removing reaction", "error", err, "channel", item.Channel, "ts", item.TS)
	}
	if err := e.store.ClearReactionListener(ctx, item.Channel, item.TS); err != nil {
		e.logger.Warn("error clearing reaction listener", "error", err)
	}
	if !shouldRespond {
		return nil
	}

	thread := pctx.Thread()
	query := ""
	if ev := thread.LastEventOfType(store.EventAnswerFlow); ev != nil && ev.Meta != nil {
		query = ev.Meta.Query
	}
	title := ""
	if ev := thread.LastEventOfType(store.EventSmartAnswer); ev != nil && ev.Meta != nil && ev.Meta.Hit != nil {
		title = ev.Meta.Hit.Title
	}

	if err := e.chat.StartTyping(ctx, item.Channel); err != nil {
		e.logger.Debug("error sending typing indicator", "error", err)
	}
	responses := &store.EscalationResponses{
		Prompt:    "Sorry I couldn't find what you were looking for. Do you want me to get someone who can help?",
		DM:        "Sure thing. I'll setup a group chat with {{.PointsOfContactAnd}}.",
		Channel:   "{{.PointsOfContactOr}} - can you help <@" + event.User + ">?",
		GroupChat: "{{.PointsOfContactOr}} - <@" + event.User + "> needs help with `" + query + "` and *" + title + "* wasn't helpful.",
	}
	// Prompt where the reacted-to message lives, not where the reaction
	// event nominally arrived.
	return e.promptToEscalate(ctx, pctx, item.Channel, responses)
}
