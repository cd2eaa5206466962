// Package bus is a small typed pub/sub channel connecting the datastore and
// the remote change feed to the sync orchestrator. It replaces
// notification-center-style process-wide broadcast with one explicit event
// type and buffered per-subscriber channels.
package bus

import "sync"

// Origin identifies which side of the system produced an event.
type Origin string

const (
	// OriginLocal marks a write performed by the application against the
	// local datastore.
	OriginLocal Origin = "local"

	// OriginRemote marks a change notification received from the remote
	// store's realtime channel.
	OriginRemote Origin = "remote"
)

// Event describes one observed change. Table and Action carry the remote
// notification payload verbatim; local events fill Table with the entity
// table written.
type Event struct {
	Origin Origin
	Table  string
	Action string
}

// Bus fans events out to all subscribers. A slow subscriber never blocks a
// publisher: events are dropped when a subscriber's buffer is full, which is
// acceptable because every event is only a sync trigger, not data.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber and returns its receive channel.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 64)
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers ev to all subscribers without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
