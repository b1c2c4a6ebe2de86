// ABOUTME: Outbound reply path: expire gate, template vars, sent recording
// ABOUTME: Every flow reply goes through here so late sends drop cleanly

package bot

import (
	"context"
	"log/slog"
	"strings"
	"text/template"

	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/session"
)

// reply delivers a response unless the event has expired, rendering any
// template vars first and recording the sent message on the session.
// An expired event returns (nil, nil).
func (e *Engine) reply(ctx context.Context, pctx *session.Context, channel string, resp platform.Response) (*platform.SentMessage, error) {
	if pctx.Expired() {
		e.logger.Debug("dropping reply for expired event", "channel", channel)
		return nil, nil
	}

	resp.Text = renderVars(resp.Text, resp.Vars, e.logger)
	resp.Vars = nil

	sent, err := e.chat.Reply(ctx, channel, resp)
	if err != nil {
		return nil, err
	}

	e.sessions.Sent(pctx, &platform.Event{
		Type:    platform.TypeMessage,
		Channel: sent.Channel,
		TS:      sent.TS,
		User:    e.ids.BotID,
		Text:    resp.Text,
	})
	return sent, nil
}

// renderVars expands {{.Name}} references against the vars map. Render
// failures fall back to the raw text; a literal brace beats a dropped
// message.
func renderVars(text string, vars map[string]string, logger *slog.Logger) string {
	if len(vars) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	tmpl, err := template.New("response").Parse(text)
	if err != nil {
		logger.Warn("error parsing response template", "error", err)
		return text
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		logger.Warn("error rendering response template", "error", err)
		return text
	}
	return b.String()
}
