package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
	err    error
}

func (s *recordingSink) Deliver(_ context.Context, event Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) delivered() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 8, zerolog.Nop())

	first := uuid.New()
	second := uuid.New()
	d.Notify(Event{Kind: EventIPCSubmitted, IPCID: first})
	d.Notify(Event{Kind: EventIPCTransitioned, IPCID: second})
	d.Close()

	events := sink.delivered()
	require.Len(t, events, 2)
	assert.Equal(t, first, events[0].IPCID)
	assert.Equal(t, second, events[1].IPCID)
	assert.False(t, events[0].OccurredAt.IsZero())
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	var logs bytes.Buffer
	sink := &recordingSink{block: make(chan struct{})}
	d := NewDispatcher(sink, 1, zerolog.New(&logs))

	// the worker takes at most one event and blocks on it, the queue holds
	// one more, so of five events at least three must be dropped
	for i := 0; i < 5; i++ {
		d.Notify(Event{Kind: EventReviewReminder, IPCID: uuid.New()})
	}
	close(sink.block)
	d.Close()

	assert.LessOrEqual(t, len(sink.delivered()), 2)
	assert.Contains(t, logs.String(), "event dropped")
}

func TestDispatcher_NotifyAfterCloseIsIgnored(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 2, zerolog.Nop())
	d.Close()
	d.Close()

	assert.NotPanics(t, func() { d.Notify(Event{Kind: EventIPCSubmitted}) })
	assert.Empty(t, sink.delivered())
}

func TestDispatcher_LogsDeliveryErrors(t *testing.T) {
	var logs bytes.Buffer
	sink := &recordingSink{err: errors.New("smtp down")}
	d := NewDispatcher(sink, 2, zerolog.New(&logs))
	d.Notify(Event{Kind: EventIPCSubmitted, IPCID: uuid.New()})
	d.Close()

	assert.Contains(t, logs.String(), "smtp down")
}
