// ABOUTME: Console implementation of Chat for local runs and demos
// ABOUTME: Prints outbound traffic to a writer and fabricates channel ids

package platform

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Console is a Chat that writes everything to one stream. It exists so
// the engine can be exercised end to end from a terminal without a real
// chat platform behind it.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	seq   int
	names map[string]string
}

// NewConsole creates a console chat writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{
		out:   out,
		names: make(map[string]string),
	}
}

// SetChannelName registers a human name for a channel id.
func (c *Console) SetChannelName(channelID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[channelID] = name
}

// stamp fabricates a platform timestamp: unix seconds plus a uniqueness
// counter, matching the "seconds.fraction" wire shape.
func (c *Console) stamp() string {
	c.seq++
	return fmt.Sprintf("%d.%06d", time.Now().Unix(), c.seq)
}

func (c *Console) Reply(ctx context.Context, channel string, resp Response) (*SentMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "[%s] %s\n", channel, resp.Text)
	for _, a := range resp.Attachments {
		for _, line := range strings.Split(a.Text, "\n") {
			fmt.Fprintf(c.out, "[%s]   %s\n", channel, line)
		}
	}
	return &SentMessage{Channel: channel, TS: c.stamp()}, nil
}

func (c *Console) StartTyping(ctx context.Context, channel string) error {
	return nil
}

func (c *Console) OpenDM(ctx context.Context, userID string) (string, error) {
	return "D" + userID, nil
}

func (c *Console) OpenGroupChat(ctx context.Context, userIDs []string) (string, error) {
	distinct := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		distinct[id] = true
	}
	if len(distinct) < 2 {
		return "", ErrNotEnoughUsers
	}
	channel := "G" + strings.ToUpper(uuid.NewString()[:8])
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[%s] (group chat opened with %s)\n", channel, strings.Join(userIDs, ", "))
	return channel, nil
}

func (c *Console) AddReaction(ctx context.Context, name, channel, ts string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[%s] (reacted :%s: to %s)\n", channel, name, ts)
	return nil
}

func (c *Console) RemoveReaction(ctx context.Context, name, channel, ts string) error {
	return nil
}

func (c *Console) ChannelName(ctx context.Context, channelID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.names[channelID]; ok {
		return name, nil
	}
	return channelID, nil
}
