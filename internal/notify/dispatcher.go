// Package notify hands reminders and status events to the delivery
// collaborator without making callers wait for it.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/procurement-ipc/internal/model"
)

type EventKind string

const (
	EventIPCSubmitted    EventKind = "IPC_SUBMITTED"
	EventIPCTransitioned EventKind = "IPC_TRANSITIONED"
	EventReviewReminder  EventKind = "IPC_REVIEW_REMINDER"
	EventOverClaim       EventKind = "CONTRACT_OVER_CLAIM"
)

type Event struct {
	Kind       EventKind
	ContractID uuid.UUID
	IPCID      uuid.UUID
	IPCNumber  string
	Status     model.IPCStatus
	ActorID    uuid.UUID
	Message    string
	OccurredAt time.Time
}

// Sink delivers one event. Implementations own their timeouts and retries.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Dispatcher queues events for a single background worker. Notify never
// blocks; when the queue is full the event is dropped and logged.
type Dispatcher struct {
	sink   Sink
	queue  chan Event
	log    zerolog.Logger
	wg     sync.WaitGroup
	once   sync.Once
	closed chan struct{}
	mu     sync.RWMutex
}

func NewDispatcher(sink Sink, queueSize int, log zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &Dispatcher{
		sink:   sink,
		queue:  make(chan Event, queueSize),
		log:    log.With().Str("component", "notify").Logger(),
		closed: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) Notify(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	select {
	case <-d.closed:
		return
	default:
	}

	select {
	case d.queue <- event:
	default:
		d.log.Warn().Str("kind", string(event.Kind)).Str("ipc_id", event.IPCID.String()).Msg("notification queue full, event dropped")
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		close(d.closed)
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for event := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.sink.Deliver(ctx, event); err != nil {
			d.log.Error().Err(err).Str("kind", string(event.Kind)).Str("ipc_id", event.IPCID.String()).Msg("notification delivery failed")
		}
		cancel()
	}
}

// LogSink writes events to the log. It stands in for the delivery service
// in environments where none is configured.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Deliver(_ context.Context, event Event) error {
	s.Log.Info().
		Str("kind", string(event.Kind)).
		Str("contract_id", event.ContractID.String()).
		Str("ipc_id", event.IPCID.String()).
		Str("ipc_number", event.IPCNumber).
		Str("status", string(event.Status)).
		Time("occurred_at", event.OccurredAt).
		Msg(event.Message)
	return nil
}
