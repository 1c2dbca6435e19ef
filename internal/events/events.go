// Package events provides a typed publish/subscribe bus used to surface
// client-side signals (denied downloads, poll progress, download lifecycle)
// to whatever surface is interested in them.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/incidentops/console/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// EventUnauthorized - a HEAD pre-check before a download was denied.
	EventUnauthorized EventType = "unauthorized"

	// EventPollProgress - a poll received a non-terminal response.
	EventPollProgress EventType = "poll_progress"

	// Download lifecycle events
	EventDownloadStarted   EventType = "download_started"
	EventDownloadCompleted EventType = "download_completed"
	EventDownloadFailed    EventType = "download_failed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// UnauthorizedEvent is published when the console denies access to a
// resource. Subject and Reason come from the console's 403 response headers.
type UnauthorizedEvent struct {
	BaseEvent
	Path    string
	Subject string
	Reason  string
}

// PollProgressEvent is published for every non-terminal poll response.
type PollProgressEvent struct {
	BaseEvent
	PollID string
	Path   string
	State  string
}

// DownloadEvent represents download lifecycle transitions.
type DownloadEvent struct {
	BaseEvent
	Path  string
	Bytes int64
	Error error
}

// NewUnauthorizedEvent builds an UnauthorizedEvent stamped with the current time.
func NewUnauthorizedEvent(path, subject, reason string) UnauthorizedEvent {
	return UnauthorizedEvent{
		BaseEvent: BaseEvent{EventType: EventUnauthorized, Time: time.Now()},
		Path:      path,
		Subject:   subject,
		Reason:    reason,
	}
}

// NewPollProgressEvent builds a PollProgressEvent stamped with the current time.
func NewPollProgressEvent(pollID, path, state string) PollProgressEvent {
	return PollProgressEvent{
		BaseEvent: BaseEvent{EventType: EventPollProgress, Time: time.Now()},
		PollID:    pollID,
		Path:      path,
		State:     state,
	}
}

// NewDownloadEvent builds a DownloadEvent of the given type.
func NewDownloadEvent(t EventType, path string, bytes int64, err error) DownloadEvent {
	return DownloadEvent{
		BaseEvent: BaseEvent{EventType: t, Time: time.Now()},
		Path:      path,
		Bytes:     bytes,
		Error:     err,
	}
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with the specified buffer size per
// subscriber channel.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers. Non-blocking: if a subscriber's
// buffer is full the event is dropped for that subscriber and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// DroppedEvents returns the number of events dropped due to full buffers.
func (eb *EventBus) DroppedEvents() int64 {
	return eb.droppedEvents.Load()
}

// Close shuts down the bus and closes all subscriber channels.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, chans := range eb.subscribers {
		for _, ch := range chans {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
	eb.subscribers = make(map[EventType][]chan Event)
	eb.all = nil
}
