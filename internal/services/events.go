package services

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	EventLessonGenerated = "lesson.generated"
	EventAssetsScanned   = "assets.scanned"
	EventAssetGenerated  = "asset.generated"
	EventHostMetrics     = "host.metrics"
)

type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// EventPublisher is what services emit through. A nil publisher is allowed.
type EventPublisher interface {
	Publish(event Event)
}

func publish(p EventPublisher, eventType string, data any) {
	if p == nil {
		return
	}
	p.Publish(Event{Type: eventType, At: time.Now().UTC(), Data: data})
}

// EventHub fans events out to connected admin websockets. Slow clients lose
// events rather than blocking publishers.
type EventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	ch      chan Event
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients: map[*websocket.Conn]bool{},
		ch:      make(chan Event, 64),
	}
}

func (h *EventHub) Run(ctx context.Context) {
	for {
		select {
		case event := <-h.ch:
			h.mu.Lock()
			for conn := range h.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(event); err != nil {
					delete(h.clients, conn)
					_ = conn.Close()
				}
			}
			h.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (h *EventHub) Publish(event Event) {
	if h == nil {
		return
	}
	select {
	case h.ch <- event:
	default:
	}
}

func (h *EventHub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *EventHub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
