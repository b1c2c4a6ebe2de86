// ABOUTME: Tests for text stripping, utterance patterns, and the registry
// ABOUTME: Covers mention removal, subtype gating, and first-match dispatch

package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/session"
)

func TestStrip(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Hello!", "hello"},
		{"<@B1> hi there", "hithere"},
		{"<@B1>", ""},
		{"O.K.", "ok"},
		{"Sure, why not?", "surewhynot"},
		{"YES!!", "yes"},
		{"guest wifi password", "guestwifipassword"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Strip(tt.text, "B1"))
		})
	}
}

func TestMatches(t *testing.T) {
	pctx := &session.Context{Stripped: "hello"}
	event := &platform.Event{Type: platform.TypeMessage}

	assert.True(t, Matches(Greetings, pctx, event))
	assert.False(t, Matches(Help, pctx, event))

	// Edited and deleted messages never match.
	edited := &platform.Event{Type: platform.TypeMessage, Subtype: "message_changed"}
	assert.False(t, Matches(Greetings, pctx, edited))

	// Bot-authored messages still do.
	fromBot := &platform.Event{Type: platform.TypeMessage, Subtype: "bot_message"}
	assert.True(t, Matches(Greetings, pctx, fromBot))
}

func TestMatches_BareMention(t *testing.T) {
	// "<@B1>" strips to nothing, which greets.
	pctx := &session.Context{Stripped: ""}
	assert.True(t, Matches(Greetings, pctx, &platform.Event{}))
	assert.False(t, Matches(Human, pctx, &platform.Event{}))
}

func TestYesNoPatterns(t *testing.T) {
	yes := []string{"yes", "yeah", "yep", "sure", "ok", "surething", "yesplease"}
	for _, s := range yes {
		assert.True(t, Matches(Yes, &session.Context{Stripped: s}, &platform.Event{}), s)
	}

	no := []string{"no", "nah", "nope", "nothanks"}
	for _, s := range no {
		assert.True(t, Matches(No, &session.Context{Stripped: s}, &platform.Event{}), s)
	}

	neither := []string{"maybe", "what", ""}
	for _, s := range neither {
		assert.False(t, Matches(Yes, &session.Context{Stripped: s}, &platform.Event{}), s)
		assert.False(t, Matches(No, &session.Context{Stripped: s}, &platform.Event{}), s)
	}
}

func TestRegistry_FirstMatchWins(t *testing.T) {
	var ran []string
	matching := func(name string) Flow {
		return Flow{
			Name:  name,
			Match: func(ctx context.Context, pctx *session.Context, event *platform.Event) bool { return true },
			Run: func(ctx context.Context, pctx *session.Context, event *platform.Event) error {
				ran = append(ran, name)
				return nil
			},
		}
	}
	declining := Flow{
		Name:  "declines",
		Match: func(ctx context.Context, pctx *session.Context, event *platform.Event) bool { return false },
		Run: func(ctx context.Context, pctx *session.Context, event *platform.Event) error {
			ran = append(ran, "declines")
			return nil
		},
	}

	registry := NewRegistry(nil, declining, matching("first"), matching("second"))
	handled := registry.Dispatch(context.Background(), &session.Context{}, &platform.Event{})

	assert.True(t, handled)
	assert.Equal(t, []string{"first"}, ran)
}

func TestRegistry_RunErrorStillCountsAsHandled(t *testing.T) {
	failing := Flow{
		Name:  "failing",
		Match: func(ctx context.Context, pctx *session.Context, event *platform.Event) bool { return true },
		Run: func(ctx context.Context, pctx *session.Context, event *platform.Event) error {
			return errors.New("boom")
		},
	}
	fallbackRan := false
	fallback := Flow{
		Name:  "fallback",
		Match: func(ctx context.Context, pctx *session.Context, event *platform.Event) bool { return true },
		Run: func(ctx context.Context, pctx *session.Context, event *platform.Event) error {
			fallbackRan = true
			return nil
		},
	}

	registry := NewRegistry(nil, failing, fallback)
	handled := registry.Dispatch(context.Background(), &session.Context{}, &platform.Event{})

	assert.True(t, handled)
	assert.False(t, fallbackRan, "a failed flow must not be retried against later flows")
}

func TestRegistry_NoMatch(t *testing.T) {
	registry := NewRegistry(nil)
	assert.False(t, registry.Dispatch(context.Background(), &session.Context{}, &platform.Event{}))
}
