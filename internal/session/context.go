// ABOUTME: Per-event processing context passed through the dispatch chain
// ABOUTME: Carries identity, derived message fields, and mutable processing state

package session

import (
	"sync"

	"github.com/2389/replybot/internal/platform"
)

// Context carries the state accumulated while processing one inbound
// event: who we are, the normalized message text, and flags set by the
// supervisor and flows. It replaces any in-place annotation of the event
// itself, so the inbound event stays immutable once normalized.
type Context struct {
	Identities platform.Identities

	// Stripped is the lowercased message text with the bot mention and
	// punctuation removed, used for utterance matching.
	Stripped string

	// DM is true when the event arrived in a direct-message channel.
	DM bool

	mu         sync.Mutex
	expired    bool
	forceClose bool
	thread     *Thread
}

// NewContext creates a processing context for one inbound event.
func NewContext(identities platform.Identities) *Context {
	return &Context{Identities: identities}
}

// Expire marks the event as expired. Reply paths check this and turn
// into no-ops, which is how the flow deadline cancels in-flight sends.
func (c *Context) Expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired = true
}

// Expired reports whether the event has been marked expired.
func (c *Context) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// SetForceClose requests that the session be closed on the final commit.
func (c *Context) SetForceClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forceClose = true
}

// ForceClose reports whether close-on-commit was requested.
func (c *Context) ForceClose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forceClose
}

// SetThread attaches the locked thread for downstream flows.
func (c *Context) SetThread(t *Thread) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thread = t
}

// Thread returns the attached thread, or nil when the event carries no
// dialogue state.
func (c *Context) Thread() *Thread {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thread
}
