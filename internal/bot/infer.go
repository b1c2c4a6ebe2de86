// ABOUTME: Continuation inference: interpret follow-ups against the last flow
// ABOUTME: Falls back to the answer path when nothing can be inferred

package bot

import (
	"context"

	"github.com/2389/replybot/internal/answer"
	"github.com/2389/replybot/internal/flow"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/search"
	"github.com/2389/replybot/internal/session"
	"github.com/2389/replybot/internal/store"
)

func (e *Engine) inferFlow() flow.Flow {
	return flow.Flow{
		Name: "infer",
		Match: func(ctx context.Context, pctx *session.Context, event *platform.Event) bool {
			if event.Username == platform.SystemUsername || event.User == platform.SystemUserID {
				return false
			}
			switch event.Event {
			case platform.EventDirectMessage, platform.EventDirectMention:
				return true
			case platform.EventAmbient:
				thread := pctx.Thread()
				return thread != nil && thread.IsOpen()
			}
			return false
		},
		Run: e.runInfer,
	}
}

func (e *Engine) runInfer(ctx context.Context, pctx *session.Context, event *platform.Event) error {
	var inferred bool
	if pctx.Thread() != nil {
		// Inference runs unsupervised-quiet: no typing, no fallback
		// replies, and it neither unlocks nor closes; the fallback path
		// below still needs the session.
		err := e.runner.Run(ctx, pctx, event, "infer", func(ctx context.Context, pctx *session.Context, event *platform.Event) error {
			var ierr error
			inferred, ierr = e.infer(ctx, pctx, event)
			return ierr
		}, flow.Options{})
		if err != nil {
			e.logger.Error("error inferring response", "error", err, "channel", event.Channel, "user", event.User)
			inferred = false
		}
	}

	if inferred {
		return nil
	}

	if e.shouldCloseSession(pctx, event) {
		return e.sessions.Commit(ctx, pctx, true)
	}

	opts := flow.DefaultOptions()
	opts.CloseOnComplete = false
	return e.runner.Run(ctx, pctx, event, "answer", func(ctx context.Context, pctx *session.Context, event *platform.Event) error {
		return e.runAnswer(ctx, pctx, event, true)
	}, opts)
}

// infer dispatches on the session's most recent flow marker.
func (e *Engine) infer(ctx context.Context, pctx *session.Context, event *platform.Event) (bool, error) {
	last := pctx.Thread().LastFlowEvent()
	if last == nil {
		return false, nil
	}
	switch last.Type {
	case store.EventAnswerFlow:
		return e.inferAnswer(ctx, pctx, event)
	case store.EventEscalationFlow:
		return e.inferEscalation(ctx, pctx, event, last)
	}
	return false, nil
}

// inferAnswer interprets the message as a pick from the last
// multi-result list and replays the chosen hit through the normal
// result handling.
func (e *Engine) inferAnswer(ctx context.Context, pctx *session.Context, event *platform.Event) (bool, error) {
	results := pctx.Thread().LastEventOfType(store.EventMultipleResults)
	if results == nil || results.Meta == nil {
		return false, nil
	}
	hits := results.Meta.Hits

	choice, ok := answer.ParseChoice(event.Text, len(hits))
	if !ok {
		return false, nil
	}

	e.tracker.InferredResultChoice(e.ids, event, pctx.DM, choice, len(hits))
	if err := e.sessions.Receive(pctx, event); err != nil {
		return false, err
	}
	if err := e.handleResults(ctx, pctx, event, search.FromHit(hits[choice]), 0); err != nil {
		return false, err
	}
	return true, nil
}

// inferEscalation interprets yes/no after an escalation prompt. Either
// answer, and any unrecognized ambient follow-up, closes the session.
func (e *Engine) inferEscalation(ctx context.Context, pctx *session.Context, event *platform.Event, prompt *store.SessionEvent) (bool, error) {
	inferred := false
	escalated := false

	switch {
	case flow.Matches(flow.Yes, pctx, event):
		inferred = true
		escalated = true
		if err := e.chat.StartTyping(ctx, event.Channel); err != nil {
			e.logger.Debug("error sending typing indicator", "error", err)
		}
		if err := e.sessions.Receive(pctx, event); err != nil {
			return false, err
		}
		var responses *store.EscalationResponses
		if prompt.Meta != nil {
			responses = prompt.Meta.Responses
		}
		if err := e.escalate(ctx, pctx, event, responses); err != nil {
			return false, err
		}

	case flow.Matches(flow.No, pctx, event):
		inferred = true
		if err := e.sessions.Receive(pctx, event); err != nil {
			return false, err
		}
		if _, err := e.reply(ctx, pctx, event.Channel, platform.Response{Text: "Ok, I'll hold off."}); err != nil {
			return false, err
		}
	}

	if inferred {
		e.tracker.InferredEscalation(e.ids, event, pctx.DM, escalated)
	}

	// An ambient message that isn't a yes or no wasn't for us; swallow
	// it and end the dialogue without replying.
	if event.Event == platform.EventAmbient && !inferred {
		inferred = true
	}

	if !inferred {
		return false, nil
	}
	if err := e.sessions.Commit(ctx, pctx, true); err != nil {
		return false, err
	}
	return true, nil
}

// shouldCloseSession keeps consecutive searches out of open dialogues:
// describing a result you just looked up shouldn't be inferred as a new
// search, so an ambient follow-up to an answer ends the session instead.
func (e *Engine) shouldCloseSession(pctx *session.Context, event *platform.Event) bool {
	thread := pctx.Thread()
	if thread == nil {
		return false
	}
	last := thread.LastFlowEvent()
	if last == nil {
		return false
	}
	return event.Event == platform.EventAmbient && last.Type == store.EventAnswerFlow
}
