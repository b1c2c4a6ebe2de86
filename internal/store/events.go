// ABOUTME: Session event log types: append-only, conversation-causal ordering
// ABOUTME: Flow-marker events drive continuation inference on follow-up messages

package store

import (
	"time"

	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/search"
)

// Event types recorded in a session's log.
const (
	EventMessageReceived = "message_received"
	EventMessageSent     = "message_sent"
	EventGreetingFlow    = "greeting_flow"
	EventHelpFlow        = "help_flow"
	EventHumanFlow       = "human_flow"
	EventAnswerFlow      = "answer_flow"
	EventEscalationFlow  = "escalation_flow"
	EventSmartAnswer     = "smart_answer"
	EventMultipleResults = "multiple_results"
	EventNoResults       = "no_results"
	EventClarification   = "clarification"
	EventFeedback        = "feedback"
	EventEscalated       = "escalated"
)

// flowEvents is the fixed set of flow-marker types. The most recent one
// in a session tells the inference engine which dialogue a follow-up
// message might be continuing.
var flowEvents = map[string]bool{
	EventGreetingFlow:   true,
	EventHelpFlow:       true,
	EventHumanFlow:      true,
	EventAnswerFlow:     true,
	EventEscalationFlow: true,
}

// IsFlowEvent reports whether the type is a flow marker.
func IsFlowEvent(eventType string) bool {
	return flowEvents[eventType]
}

// EscalationResponses are the message templates an escalation prompt was
// issued with. They are stored on the prompt event so a later "yes" can
// run the escalation with the original wording.
type EscalationResponses struct {
	Prompt       string `json:"prompt,omitempty"`
	DM           string `json:"dm,omitempty"`
	GroupChat    string `json:"group_chat,omitempty"`
	Channel      string `json:"channel,omitempty"`
	AdminDM      string `json:"admin_dm,omitempty"`
	AdminChannel string `json:"admin_channel,omitempty"`
}

// EscalatedMeta records how an escalation was carried out.
type EscalatedMeta struct {
	DM        bool `json:"dm"`
	GroupChat bool `json:"group_chat,omitempty"`
	Admin     bool `json:"admin,omitempty"`
	Contacts  int  `json:"contacts,omitempty"`
}

// EventMeta is the free-form payload attached to a session event.
type EventMeta struct {
	Query     string               `json:"query,omitempty"`
	TookMS    int64                `json:"took_ms,omitempty"`
	Hits      []search.Hit         `json:"hits,omitempty"`
	Hit       *search.Hit          `json:"hit,omitempty"`
	Responses *EscalationResponses `json:"responses,omitempty"`
	Positive  *bool                `json:"positive,omitempty"`
	Escalated *EscalatedMeta       `json:"escalated,omitempty"`
}

// SessionEvent is one entry in a session's append-only log. Seq is
// assigned by the store on commit; append order is logical time.
type SessionEvent struct {
	ID        string
	SessionID string
	BotID     string
	TeamID    string
	ChannelID string
	UserID    string
	Type      string
	MessageID string          // platform ts of the related message, if any
	Message   *platform.Event // snapshot of the related message, if any
	Meta      *EventMeta
	Seq       int
	CreatedAt time.Time
}
