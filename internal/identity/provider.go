// Package identity implements passwordless sign-in: the backend Issuer that
// mints link tokens and sessions, and the client Provider the application
// subscribes to.
package identity

import (
	"context"
	"sync"

	"github.com/sadopc/timesheet/internal/model"
)

type EventKind int

const (
	SignedIn EventKind = iota + 1
	SignedOut
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	}
	return "unknown"
}

type Event struct {
	Kind    EventKind
	Session *model.Session
}

// Provider is the client-side view of the identity service.
type Provider interface {
	// CurrentSession returns the live session, or nil when signed out.
	CurrentSession(ctx context.Context) (*model.Session, error)
	SendLink(ctx context.Context, email string) error
	Verify(ctx context.Context, token string) (*model.Session, error)
	SignOut(ctx context.Context) error
	// Subscribe returns an event stream and a func that ends it.
	Subscribe() (<-chan Event, func())
}

const subscriberBuffer = 16

// hub fans events out to subscribers. Slow subscribers lose events rather
// than block the publisher.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]chan Event)
	}
	id := h.next
	h.next++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
