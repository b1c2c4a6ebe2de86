// ABOUTME: Tests for thread event-log queries and inactivity detection
// ABOUTME: Covers newest-first scans, pending tracking, and the timeout clock

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/store"
)

func openSession() *store.Session {
	return &store.Session{
		ID:        "s1",
		BotID:     "B1",
		TeamID:    "T1",
		ChannelID: "C1",
		UserID:    "U1",
		Status:    store.SessionStatusOpen,
	}
}

func logEvent(eventType string) *store.SessionEvent {
	return &store.SessionEvent{SessionID: "s1", Type: eventType}
}

func receivedAt(ts string) *store.SessionEvent {
	return &store.SessionEvent{
		SessionID: "s1",
		Type:      store.EventMessageReceived,
		MessageID: ts,
		Message:   &platform.Event{Type: platform.TypeMessage, TS: ts},
	}
}

func TestThread_PendingTracksCommits(t *testing.T) {
	thread := NewThread(openSession(), []*store.SessionEvent{logEvent(store.EventGreetingFlow)}, nil)

	assert.Empty(t, thread.Pending())

	thread.Append(logEvent(store.EventMessageSent))
	thread.Append(logEvent(store.EventMessageSent))
	require.Len(t, thread.Pending(), 2)
	assert.Len(t, thread.Events(), 3)

	thread.MarkCommitted()
	assert.Empty(t, thread.Pending())
	assert.Len(t, thread.Events(), 3)
}

func TestThread_ConcurrentAppendAndCommit(t *testing.T) {
	thread := NewThread(openSession(), nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			thread.Append(logEvent(store.EventMessageSent))
		}
	}()

	// Interleave the reads and commit tracking the middleware performs
	// while a flow body is still appending.
	for i := 0; i < 200; i++ {
		thread.Pending()
		thread.MarkCommitted()
		thread.LastFlowEvent()
		thread.LastEvent()
		thread.Events()
	}
	<-done

	assert.Len(t, thread.Events(), 200)
}

func TestThread_LastFlowEvent(t *testing.T) {
	thread := NewThread(openSession(), []*store.SessionEvent{
		logEvent(store.EventGreetingFlow),
		logEvent(store.EventAnswerFlow),
		logEvent(store.EventMultipleResults),
		logEvent(store.EventMessageSent),
	}, nil)

	last := thread.LastFlowEvent()
	require.NotNil(t, last)
	// multiple_results and message_sent are not flow markers
	assert.Equal(t, store.EventAnswerFlow, last.Type)
}

func TestThread_LastFlowEvent_Empty(t *testing.T) {
	thread := NewThread(openSession(), nil, nil)
	assert.Nil(t, thread.LastFlowEvent())
	assert.Nil(t, thread.LastEvent())
}

func TestThread_LastEventOfType(t *testing.T) {
	first := logEvent(store.EventMultipleResults)
	second := logEvent(store.EventMultipleResults)
	thread := NewThread(openSession(), []*store.SessionEvent{
		first,
		logEvent(store.EventMessageSent),
		second,
	}, nil)

	assert.Same(t, second, thread.LastEventOfType(store.EventMultipleResults))
	assert.Nil(t, thread.LastEventOfType(store.EventSmartAnswer))
}

func TestThread_LastReceived(t *testing.T) {
	thread := NewThread(openSession(), []*store.SessionEvent{
		receivedAt("100.000001"),
		logEvent(store.EventMessageSent),
		receivedAt("200.000001"),
		// A received marker without a snapshot timestamp doesn't count.
		logEvent(store.EventMessageReceived),
	}, nil)

	last := thread.LastReceived()
	require.NotNil(t, last)
	assert.Equal(t, "200.000001", last.TS)
}

func TestThread_TimedOut(t *testing.T) {
	now := time.Unix(1000, 0)

	tests := []struct {
		name   string
		events []*store.SessionEvent
		want   bool
	}{
		{"no received messages", []*store.SessionEvent{logEvent(store.EventGreetingFlow)}, false},
		{"recent message", []*store.SessionEvent{receivedAt("970.000001")}, false},
		{"stale message", []*store.SessionEvent{receivedAt("900.000001")}, true},
		{"exactly at the boundary", []*store.SessionEvent{receivedAt("940.000001")}, false},
		{"unparseable timestamp", []*store.SessionEvent{receivedAt("garbage")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thread := NewThread(openSession(), tt.events, nil)
			assert.Equal(t, tt.want, thread.TimedOut(60*time.Second, now))
		})
	}
}

func TestThread_OpenClosed(t *testing.T) {
	thread := NewThread(openSession(), nil, nil)
	assert.True(t, thread.IsOpen())
	assert.False(t, thread.IsClosed())

	thread.Model.Status = store.SessionStatusClosed
	assert.False(t, thread.IsOpen())
	assert.True(t, thread.IsClosed())
}

func TestThread_SentMessagesDontResetTimeout(t *testing.T) {
	sent := logEvent(store.EventMessageSent)
	sent.Message = &platform.Event{TS: "995.000001"}
	thread := NewThread(openSession(), []*store.SessionEvent{
		receivedAt("900.000001"),
		sent,
	}, nil)

	assert.True(t, thread.TimedOut(60*time.Second, time.Unix(1000, 0)),
		"timeout should key on the last received message")
}
