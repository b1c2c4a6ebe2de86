// ABOUTME: Structured analytics events for bot interactions
// ABOUTME: Emits slog records; the collaborators never depend on delivery

package track

import (
	"log/slog"
	"strings"
	"time"

	"github.com/2389/replybot/internal/platform"
)

// Tracker reports analytics events as structured log records. It owns a
// bounded first-seen cache so "new user" is reported once per user, not
// once per message.
type Tracker struct {
	logger *slog.Logger
	seen   *seenCache
}

// New creates a tracker. The first-seen cache holds up to 10k users for
// a day; both bounds exist only to cap memory.
func New(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger: logger.With("component", "track"),
		seen:   newSeenCache(24*time.Hour, 10_000),
	}
}

// Close releases the first-seen cache.
func (t *Tracker) Close() {
	t.seen.close()
}

// event emits one analytics record unless the message came from the bot
// itself or the platform system user.
func (t *Tracker) event(ids platform.Identities, msg *platform.Event, dm bool, kind string, attrs ...any) {
	if msg.User == ids.BotID || strings.EqualFold(msg.User, platform.SystemUserID) {
		return
	}
	base := []any{
		"kind", kind,
		"team", ids.TeamID,
		"bot", ids.BotID,
		"user", msg.User,
		"channel", msg.Channel,
		"dm", dm,
	}
	if msg.User != "" && !t.seen.checkAndMark(ids.TeamID+":"+msg.User) {
		base = append(base, "first_seen", true)
	}
	t.logger.Info("analytics", append(base, attrs...)...)
}

func (t *Tracker) Greeting(ids platform.Identities, msg *platform.Event, dm bool) {
	t.event(ids, msg, dm, "greeting")
}

func (t *Tracker) Help(ids platform.Identities, msg *platform.Event, dm bool) {
	t.event(ids, msg, dm, "help")
}

func (t *Tracker) Human(ids platform.Identities, msg *platform.Event, dm bool) {
	t.event(ids, msg, dm, "human")
}

func (t *Tracker) AskForClarification(ids platform.Identities, msg *platform.Event, dm bool, words int) {
	t.event(ids, msg, dm, "ask_for_clarification", "words", words)
}

func (t *Tracker) NoResults(ids platform.Identities, msg *platform.Event, dm bool, query string) {
	t.event(ids, msg, dm, "no_results", "query", query)
}

func (t *Tracker) MultipleResults(ids platform.Identities, msg *platform.Event, dm bool, total int) {
	t.event(ids, msg, dm, "multiple_results", "total", total)
}

func (t *Tracker) InferredResultChoice(ids platform.Identities, msg *platform.Event, dm bool, index, total int) {
	t.event(ids, msg, dm, "inferred_result_choice", "index", index, "total", total)
}

func (t *Tracker) InferredEscalation(ids platform.Identities, msg *platform.Event, dm bool, escalated bool) {
	t.event(ids, msg, dm, "inferred_escalation", "escalated", escalated)
}

func (t *Tracker) Escalation(ids platform.Identities, msg *platform.Event, dm, groupChat, admin bool, contacts int) {
	t.event(ids, msg, dm, "escalation", "group_chat", groupChat, "admin", admin, "contacts", contacts)
}

func (t *Tracker) Feedback(ids platform.Identities, msg *platform.Event, dm, positive, responding bool) {
	t.event(ids, msg, dm, "feedback", "positive", positive, "responding", responding)
}
