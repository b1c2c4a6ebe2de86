// ABOUTME: Answer path: search with retries, tiered resolution, feedback prompt
// ABOUTME: Long questions short-circuit into a clarification request

package bot

import (
	"context"
	"strings"
	"time"

	"github.com/2389/replybot/internal/answer"
	"github.com/2389/replybot/internal/flow"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/search"
	"github.com/2389/replybot/internal/session"
	"github.com/2389/replybot/internal/store"
)

// maxQueryWords is the point past which a message reads as prose, not a
// query, and we ask for keywords instead of searching.
const maxQueryWords = 20

// runAnswer treats the message text as a knowledge-base query.
// shouldReceive is false when the caller has already recorded the
// inbound message.
func (e *Engine) runAnswer(ctx context.Context, pctx *session.Context, event *platform.Event, shouldReceive bool) error {
	if shouldReceive {
		if err := e.sessions.Receive(pctx, event); err != nil {
			return err
		}
	}
	if err := e.sessions.Log(pctx, store.EventAnswerFlow, &store.EventMeta{Query: event.Text}); err != nil {
		return err
	}

	words := len(strings.Fields(event.Text))
	if words > maxQueryWords {
		e.tracker.AskForClarification(e.ids, event, pctx.DM, words)
		return e.askForClarification(ctx, pctx, event)
	}

	searcher := &search.Retrying{
		Searcher: e.searcher,
		Retries:  e.search.Retries,
		Initial:  e.search.InitialTimeout,
		Step:     e.search.RetryStep,
		Notify: func(ctx context.Context) error {
			_, err := e.reply(ctx, pctx, event.Channel, platform.Response{Text: "Hang on, I'm working on it..."})
			return err
		},
		Logger: e.logger,
	}

	start := time.Now()
	tiers, err := searcher.Search(ctx, e.ids.TeamID, event.Text, search.Options{Size: e.search.Size})
	if err != nil {
		return err
	}
	took := time.Since(start).Milliseconds()

	if search.HasResults(tiers) {
		return e.handleResults(ctx, pctx, event, tiers, took)
	}
	e.tracker.NoResults(e.ids, event, pctx.DM, event.Text)
	return e.handleNoResult(ctx, pctx, event, event.Text)
}

func (e *Engine) askForClarification(ctx context.Context, pctx *session.Context, event *platform.Event) error {
	if err := e.sessions.Log(pctx, store.EventClarification, nil); err != nil {
		return err
	}
	text := "Sorry, I didn't quite understand that. Can you simplify it for me by " + flow.SummonVerbGerund(pctx.DM) + " me with just a few keywords?"
	return e.replyWithExample(ctx, pctx, event.Channel, text)
}

// handleResults resolves the tiers into a response and reports it,
// recording the marker event inference later keys on.
func (e *Engine) handleResults(ctx context.Context, pctx *session.Context, event *platform.Event, tiers [3]search.Tier, took int64) error {
	result := answer.Resolve(tiers, flow.SummonName(pctx))
	if result.Empty() {
		return e.handleNoResult(ctx, pctx, event, event.Text)
	}

	if result.Meta.Total > 1 {
		e.tracker.MultipleResults(e.ids, event, pctx.DM, result.Meta.Total)
		if err := e.sessions.Log(pctx, store.EventMultipleResults, &store.EventMeta{Hits: result.Meta.Hits, TookMS: took}); err != nil {
			return err
		}
		_, err := e.reply(ctx, pctx, event.Channel, result.Response)
		return err
	}

	hit := result.Meta.Hits[0]
	if err := e.sessions.Log(pctx, store.EventSmartAnswer, &store.EventMeta{Hit: &hit, TookMS: took}); err != nil {
		return err
	}
	if _, err := e.reply(ctx, pctx, event.Channel, result.Response); err != nil {
		return err
	}

	// Admins curate the knowledge base; asking them whether their own
	// answers helped is noise.
	admins, err := e.store.GetAdmins(ctx, e.ids.TeamID)
	if err != nil {
		e.logger.Error("error fetching admins", "error", err)
		return nil
	}
	for _, admin := range admins {
		if admin.ID == event.User {
			return nil
		}
	}
	if event.Subtype != "" {
		return nil
	}
	return e.askForFeedback(ctx, pctx, event)
}

// askForFeedback sends the thumbs prompt, registers the reaction
// listener, and seeds both reactions so one tap answers.
func (e *Engine) askForFeedback(ctx context.Context, pctx *session.Context, event *platform.Event) error {
	// Empty non-nil attachments force web API delivery; reacting to a
	// realtime-socket message races its creation.
	sent, err := e.reply(ctx, pctx, event.Channel, platform.Response{
		Text:        "_Was this helpful? Click thumbs up or thumbs down._",
		Attachments: []platform.Attachment{},
	})
	if err != nil {
		return err
	}
	if sent == nil {
		return nil
	}

	// Expire the event so no more typing indicators go out for it.
	pctx.Expire()

	if err := e.store.ListenReactions(ctx, sent.Channel, sent.TS); err != nil {
		e.logger.Error("error registering reaction listener", "error", err, "channel", sent.Channel, "ts", sent.TS)
	}
	if err := e.chat.AddReaction(ctx, "+1", sent.Channel, sent.TS); err != nil {
		e.logger.Error("error seeding thumbs up reaction", "error", err)
	}
	if err := e.chat.AddReaction(ctx, "-1", sent.Channel, sent.TS); err != nil {
		e.logger.Error("error seeding thumbs down reaction", "error", err)
	}
	return nil
}

func (e *Engine) handleNoResult(ctx context.Context, pctx *session.Context, event *platform.Event, query string) error {
	if err := e.sessions.Log(pctx, store.EventNoResults, nil); err != nil {
		return err
	}
	responses := &store.EscalationResponses{
		Prompt:    ":disappointed: Sorry, I haven't been trained on that yet. Do you want me to get someone who can help?",
		DM:        "Sure thing. I'll setup a group chat with {{.PointsOfContactAnd}}",
		GroupChat: "{{.PointsOfContactOr}} - <@" + event.User + "> needs help with `" + query + "` and I couldn't find anything.",
		Channel:   "{{.PointsOfContactOr}} can you help <@" + event.User + "> with `" + query + "`?",
	}
	return e.promptToEscalate(ctx, pctx, event.Channel, responses)
}
