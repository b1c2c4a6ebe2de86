// ABOUTME: Outbound response shape and the Chat collaborator interface
// ABOUTME: The engine only ever talks to the platform through Chat

package platform

import (
	"context"
	"errors"
)

// ErrNotEnoughUsers is returned by OpenGroupChat when the platform refuses
// to open a group conversation because there is only one distinct member.
var ErrNotEnoughUsers = errors.New("not enough users for group chat")

// Attachment is a rich block attached to a response.
type Attachment struct {
	Fallback   string
	Text       string
	MarkdownIn []string
}

// Response is an outbound message. A nil Attachments slice means "no
// preference"; an empty non-nil slice forces delivery through the raw web
// API instead of the realtime socket, which some follow-up operations
// (like reacting to our own message) require.
type Response struct {
	Text        string
	Attachments []Attachment
	LinkNames   bool
	Vars        map[string]string // template variables rendered before send
}

// SentMessage is the platform handle for a delivered response.
type SentMessage struct {
	Channel string
	TS      string
}

// Chat is the outbound side of the chat platform.
type Chat interface {
	// Reply delivers a response to a channel and returns the sent handle.
	Reply(ctx context.Context, channel string, resp Response) (*SentMessage, error)

	// StartTyping emits a typing indicator in a channel.
	StartTyping(ctx context.Context, channel string) error

	// OpenDM opens (or returns) the direct-message channel with a user.
	OpenDM(ctx context.Context, userID string) (string, error)

	// OpenGroupChat opens a group conversation with the given users.
	OpenGroupChat(ctx context.Context, userIDs []string) (string, error)

	// AddReaction and RemoveReaction manage emoji reactions on a message.
	AddReaction(ctx context.Context, name, channel, ts string) error
	RemoveReaction(ctx context.Context, name, channel, ts string) error

	// ChannelName resolves a channel id to its human name.
	ChannelName(ctx context.Context, channelID string) (string, error)
}
