// Package notify fans accepted change events out to in-process subscribers
// and WebSocket clients. Events carry identity and version, never full
// payloads; consumers re-fetch entity state by ID.
package notify

import (
	"sync"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/interfaces"
	"github.com/mbaxter/finsync/internal/models"
)

const subscriberBuffer = 64

// Hub implements interfaces.Notifier. Publish is called from each account's
// sync goroutine in version order, and per-subscriber buffered channels
// preserve that order, so a single account's stream is monotonic by version.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]bool
	ws          *WSHub
	logger      *common.Logger
}

type subscriber struct {
	ch     chan models.ChangeEvent
	filter interfaces.NotifyFilter
	closed bool
}

// NewHub creates a notification hub. The WebSocket hub's event loop is
// started by the caller via WS().Run.
func NewHub(logger *common.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]bool),
		ws:          NewWSHub(logger),
		logger:      logger,
	}
}

// WS exposes the WebSocket side of the hub for route registration.
func (h *Hub) WS() *WSHub {
	return h.ws
}

// Publish delivers the event to every matching subscriber and to connected
// WebSocket clients. A subscriber that cannot keep up within its buffer has
// the event dropped; WebSocket clients are evicted instead.
func (h *Hub) Publish(event models.ChangeEvent) {
	h.mu.RLock()
	for sub := range h.subscribers {
		if !matches(sub.filter, event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.logger.Warn().
				Str("entity", event.EntityID).
				Msg("Subscriber buffer full, dropping event")
		}
	}
	h.mu.RUnlock()

	h.ws.Broadcast(event)
}

// Subscribe registers an in-process consumer. The returned cancel function
// removes the subscription and closes the channel; it is safe to call twice.
func (h *Hub) Subscribe(filter interfaces.NotifyFilter) (<-chan models.ChangeEvent, func()) {
	sub := &subscriber{
		ch:     make(chan models.ChangeEvent, subscriberBuffer),
		filter: filter,
	}

	h.mu.Lock()
	h.subscribers[sub] = true
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		delete(h.subscribers, sub)
		close(sub.ch)
	}

	return sub.ch, cancel
}

// Stop shuts down the WebSocket event loop.
func (h *Hub) Stop() {
	h.ws.Stop()
}

// matches reports whether the event passes the filter. An empty filter
// matches everything; otherwise any set dimension that matches admits the
// event.
func matches(f interfaces.NotifyFilter, e models.ChangeEvent) bool {
	if f.AccountID == "" && f.BudgetID == "" && f.GoalID == "" {
		return true
	}
	if f.AccountID != "" && e.AccountID == f.AccountID {
		return true
	}
	if f.BudgetID != "" && e.EntityType == models.EntityTypeBudget && e.EntityID == f.BudgetID {
		return true
	}
	if f.GoalID != "" && e.EntityType == models.EntityTypeGoal && e.EntityID == f.GoalID {
		return true
	}
	return false
}

// Ensure Hub implements Notifier
var _ interfaces.Notifier = (*Hub)(nil)
