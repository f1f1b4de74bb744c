package events

import "sync"

// EventType represents the type of event
type EventType string

// Define event types
const (
	EventParticipantJoined EventType = "PARTICIPANT_JOINED"
	EventParticipantLeft   EventType = "PARTICIPANT_LEFT"
	EventMatchQueued       EventType = "MATCH_QUEUED"
	EventSessionStarted    EventType = "SESSION_STARTED"
	EventMoveApplied       EventType = "MOVE_APPLIED"
	EventSessionCompleted  EventType = "SESSION_COMPLETED"

	allEvents EventType = "*"
)

// Event represents an event in the system
type Event struct {
	Type      EventType
	SessionID string // Optional, can be empty for non-session events
	Payload   interface{}
}

// SessionCompleted is the payload of EventSessionCompleted
type SessionCompleted struct {
	SessionID string
	Winner    string
	Reason    string
	Ply       int
}

// Handler is a function that processes events
type Handler func(event Event)

// Publisher is the central event publisher
type Publisher struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
	wg          sync.WaitGroup
}

// NewPublisher creates a new event publisher
func NewPublisher() *Publisher {
	return &Publisher{
		subscribers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for a specific event type
func (p *Publisher) Subscribe(eventType EventType, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.subscribers[eventType] = append(p.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (p *Publisher) SubscribeAll(handler Handler) {
	p.Subscribe(allEvents, handler)
}

// Publish broadcasts an event to all subscribers including "all events" handlers.
// Handlers run on their own goroutines, so publishing while holding a lock is safe.
func (p *Publisher) Publish(event Event) {
	p.mu.RLock()
	handlers := append([]Handler(nil), p.subscribers[event.Type]...)
	handlers = append(handlers, p.subscribers[allEvents]...)
	p.mu.RUnlock()

	for _, handler := range handlers {
		p.wg.Add(1)
		go func(h Handler) {
			defer p.wg.Done()
			h(event)
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (p *Publisher) Wait() {
	p.wg.Wait()
}
