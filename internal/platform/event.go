// ABOUTME: Inbound chat event shape shared by the engine and the transport
// ABOUTME: Events arrive pre-categorized (direct_message, direct_mention, mention, ambient)

package platform

import (
	"strconv"
	"strings"
	"time"
)

// Event type constants for the outer event kind.
const (
	TypeMessage       = "message"
	TypeReactionAdded = "reaction_added"
	TypeChannelJoin   = "bot_channel_join"
	TypeGroupJoin     = "bot_group_join"
	TypeNewUser       = "new_user"
)

// Categorized event names. The transport classifies every message by how
// directly it addresses the bot before the engine sees it.
const (
	EventDirectMessage = "direct_message:message"
	EventDirectMention = "direct_mention:message"
	EventMention       = "mention:message"
	EventAmbient       = "ambient:message"
)

// SystemUsername and SystemUserID identify the platform's system
// pseudo-user. Its messages are ignored except for explicit DMs.
const (
	SystemUsername = "slackbot"
	SystemUserID   = "USLACKBOT"
)

// Item references another message, e.g. the message a reaction was added to.
type Item struct {
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

// Event is one inbound event from the chat platform. The json tags use
// omitempty so stored snapshots drop empty fields.
type Event struct {
	Type     string `json:"type,omitempty"`  // outer kind: message, reaction_added, ...
	Event    string `json:"event,omitempty"` // categorized kind: direct_message:message, ...
	Text     string `json:"text,omitempty"`
	User     string `json:"user,omitempty"`
	Channel  string `json:"channel,omitempty"`
	TS       string `json:"ts,omitempty"` // platform timestamp, "seconds.fraction"
	Subtype  string `json:"subtype,omitempty"`
	Username string `json:"username,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
	Reaction string `json:"reaction,omitempty"`  // for reaction_added
	Item     *Item  `json:"item,omitempty"`      // for reaction_added, the reacted-to message
	ItemUser string `json:"item_user,omitempty"` // author of the reacted-to message
	UserID   string `json:"user_id,omitempty"`   // for new_user provisioning events
}

// IsSelf reports whether the event originated from the bot's own activity.
func (e *Event) IsSelf() bool {
	return strings.HasPrefix(e.Event, "self")
}

// Time parses the event timestamp. The fractional part is a uniqueness
// suffix, not sub-second precision, so only the integer part is used.
func (e *Event) Time() (time.Time, bool) {
	if e.TS == "" {
		return time.Time{}, false
	}
	secs := e.TS
	if i := strings.IndexByte(secs, '.'); i >= 0 {
		secs = secs[:i]
	}
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(n, 0), true
}

// Identities carries the bot and team identity the engine operates as.
type Identities struct {
	BotID    string
	BotName  string
	TeamID   string
	TeamName string
}
