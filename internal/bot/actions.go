// ABOUTME: Shared flow actions: purpose, contacts, examples, escalation
// ABOUTME: Escalation never lets a point of contact escalate to themselves

package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/2389/replybot/internal/flow"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/session"
	"github.com/2389/replybot/internal/store"
)

// errMissingPrompt indicates an escalation was attempted without prompt text.
var errMissingPrompt = errors.New("escalation prompt is required")

// formalName is the bot's name with its first letter upcased, for prose.
func (e *Engine) formalName() string {
	name := e.ids.BotName
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// botPurpose returns the configured purpose line, or "" when the bot
// record is missing or has none.
func (e *Engine) botPurpose(ctx context.Context) (string, error) {
	bot, err := e.store.GetBot(ctx, e.ids.TeamID, e.ids.BotID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return bot.Purpose, nil
}

// pointsOfContact returns the configured escalation contacts, falling
// back to every known team member when none are configured.
func (e *Engine) pointsOfContact(ctx context.Context) ([]string, error) {
	bot, err := e.store.GetBot(ctx, e.ids.TeamID, e.ids.BotID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if bot != nil && len(bot.PointsOfContact) > 0 {
		return bot.PointsOfContact, nil
	}

	users, err := e.store.GetUsers(ctx, e.ids.TeamID)
	if err != nil {
		return nil, err
	}
	contacts := make([]string, 0, len(users))
	for _, user := range users {
		contacts = append(contacts, user.ID)
	}
	return contacts, nil
}

// formatPointsOfContact renders user ids as an @-mention list joined by
// the conjunction: "a", "a or b", "a, b or c".
func formatPointsOfContact(userIDs []string, conjunction string) string {
	names := make([]string, len(userIDs))
	for i, id := range userIDs {
		names[i] = "<@" + id + ">"
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " " + conjunction + " " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " " + conjunction + " " + names[len(names)-1]
	}
}

// exampleKeywords returns the shortest knowledge-base title, used as the
// canonical "try asking me this" example.
func (e *Engine) exampleKeywords(ctx context.Context) (string, error) {
	replies, err := e.store.GetReplies(ctx, e.ids.TeamID)
	if err != nil {
		return "", err
	}
	if len(replies) == 0 {
		return "", nil
	}

	shortest := replies[0]
	for _, reply := range replies[1:] {
		if len(reply.Title) < len(shortest.Title) {
			shortest = reply
		}
	}
	return shortest.Title, nil
}

// formattedExampleKeywords renders the example with the summon prefix
// the user would actually type, or "" when the knowledge base is empty.
func (e *Engine) formattedExampleKeywords(ctx context.Context, pctx *session.Context) (string, error) {
	keywords, err := e.exampleKeywords(ctx)
	if err != nil || keywords == "" {
		return "", err
	}
	return fmt.Sprintf("For example `%s%s`.", flow.SummonName(pctx), strings.ToLower(keywords)), nil
}

// replyWithExample appends the example sentence to the response when one
// is available.
func (e *Engine) replyWithExample(ctx context.Context, pctx *session.Context, channel, text string) error {
	example, err := e.formattedExampleKeywords(ctx, pctx)
	if err != nil {
		return err
	}
	if example != "" {
		text = text + " " + example
	}
	_, err = e.reply(ctx, pctx, channel, platform.Response{Text: text})
	return err
}

// archiveLink builds the permalink for a message.
func (e *Engine) archiveLink(channel, ts string) string {
	return fmt.Sprintf("https://%s.slack.com/archives/%s/p%s", e.ids.TeamName, channel, strings.Replace(ts, ".", "", 1))
}

// welcomeAdmin DMs a newly provisioned admin a quick tour.
func (e *Engine) welcomeAdmin(ctx context.Context, pctx *session.Context, userID string) error {
	channel, err := e.chat.OpenDM(ctx, userID)
	if err != nil {
		return fmt.Errorf("opening admin DM: %w", err)
	}
	text := fmt.Sprintf("Welcome! I'm %s. Let's start out by seeing how I work. Try asking me some of the following:\n\n- \"hi\" or \"hello\"\n- \"help\"\n- a few keywords from any question I've been trained on", e.formalName())
	_, err = e.reply(ctx, pctx, channel, platform.Response{Text: text})
	return err
}

// promptToEscalate records the escalation offer, with its response
// templates, and asks the user whether to proceed. A later "yes" replays
// the stored responses through escalate.
func (e *Engine) promptToEscalate(ctx context.Context, pctx *session.Context, channel string, responses *store.EscalationResponses) error {
	if responses.Prompt == "" {
		return errMissingPrompt
	}
	if err := e.sessions.Log(pctx, store.EventEscalationFlow, &store.EventMeta{Responses: responses}); err != nil {
		return err
	}
	_, err := e.reply(ctx, pctx, channel, platform.Response{Text: responses.Prompt})
	return err
}

// escalate hands the conversation to the points of contact.
//
// DMs escalate into a fresh group chat with the contacts; channels
// escalate by @-mentioning them in place. A requester who is themselves
// a contact gets the admin variant instead: no group chat, no mention of
// themselves.
func (e *Engine) escalate(ctx context.Context, pctx *session.Context, event *platform.Event, responses *store.EscalationResponses) error {
	if responses == nil {
		responses = &store.EscalationResponses{}
	}

	contacts, err := e.pointsOfContact(ctx)
	if err != nil {
		return fmt.Errorf("loading points of contact: %w", err)
	}
	vars := map[string]string{
		"PointsOfContactAnd": formatPointsOfContact(contacts, "and"),
		"PointsOfContactOr":  formatPointsOfContact(contacts, "or"),
	}
	shouldEscalate := !slices.Contains(contacts, event.User)

	adminDM := responses.AdminDM
	if adminDM == "" {
		adminDM = "_This is where I would normally escalate to a group chat with the admins, but since you're one of them, you can't escalate to yourself._"
	}
	adminChannel := responses.AdminChannel
	if adminChannel == "" {
		adminChannel = "_This is where I would normally @mention the admins, but since you're one of them, you can't escalate to yourself._"
	}

	meta := &store.EscalatedMeta{DM: pctx.DM}
	hadResponse := true

	switch {
	case pctx.DM && event.Subtype == "bot_message":
		// Bots can't be pulled into group chats.
		return nil

	case pctx.DM && shouldEscalate:
		if responses.DM == "" || responses.GroupChat == "" {
			hadResponse = false
			break
		}
		meta.GroupChat = true
		meta.Contacts = len(contacts)
		if _, err := e.reply(ctx, pctx, event.Channel, platform.Response{Text: responses.DM, Vars: vars}); err != nil {
			return err
		}
		if err := e.escalateToGroupChat(ctx, pctx, event, responses.GroupChat, vars, contacts); err != nil {
			return err
		}

	case pctx.DM:
		meta.Admin = true
		if _, err := e.reply(ctx, pctx, event.Channel, platform.Response{Text: adminDM, Vars: vars}); err != nil {
			return err
		}

	case shouldEscalate:
		if responses.Channel == "" {
			hadResponse = false
			break
		}
		if _, err := e.reply(ctx, pctx, event.Channel, platform.Response{Text: responses.Channel, Vars: vars}); err != nil {
			return err
		}

	default:
		meta.Admin = true
		if _, err := e.reply(ctx, pctx, event.Channel, platform.Response{Text: adminChannel, Vars: vars}); err != nil {
			return err
		}
	}

	if !hadResponse {
		e.logger.Error("no escalation response defined", "channel", event.Channel, "dm", pctx.DM)
	}

	if err := e.sessions.Log(pctx, store.EventEscalated, &store.EventMeta{Escalated: meta}); err != nil {
		return err
	}
	e.tracker.Escalation(e.ids, event, pctx.DM, meta.GroupChat, meta.Admin, meta.Contacts)
	return nil
}

// escalateToGroupChat opens the group conversation, posts the intro, and
// links the requester over to it.
func (e *Engine) escalateToGroupChat(ctx context.Context, pctx *session.Context, event *platform.Event, intro string, vars map[string]string, contacts []string) error {
	users := slices.Clone(contacts)
	users = append(users, event.User)

	groupChannel, err := e.chat.OpenGroupChat(ctx, users)
	if errors.Is(err, platform.ErrNotEnoughUsers) {
		_, rerr := e.reply(ctx, pctx, event.Channel, platform.Response{
			Text: "_This is where I'd normally escalate to a group chat, but since you're the only point of contact, there's nothing to do. If you want to see what would normally happen, have a colleague test it out or add a second point of contact._",
		})
		return rerr
	}
	if err != nil {
		return fmt.Errorf("opening group chat: %w", err)
	}

	sent, err := e.reply(ctx, pctx, groupChannel, platform.Response{Text: intro, Vars: vars})
	if err != nil {
		return err
	}
	if sent == nil {
		return nil
	}

	link := e.archiveLink(groupChannel, sent.TS)
	_, err = e.reply(ctx, pctx, event.Channel, platform.Response{
		Text:        fmt.Sprintf("The group chat is ready! <%s|Click here> to jump over to it.", link),
		Attachments: []platform.Attachment{},
	})
	return err
}
