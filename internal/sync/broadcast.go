package sync

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Listener receives every status transition. Listeners are invoked on the
// goroutine that publishes, which may be the background worker; UI listeners
// must marshal onto their own event loop themselves.
type Listener func(Result)

// Subscription identifies a registered listener for Unsubscribe.
type Subscription int

// Broadcaster is an observer registry for sync status transitions.
type Broadcaster struct {
	mu        sync.Mutex
	next      Subscription
	listeners map[Subscription]Listener
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[Subscription]Listener)}
}

// Subscribe registers a listener and returns its subscription handle.
func (b *Broadcaster) Subscribe(l Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	b.listeners[b.next] = l
	return b.next
}

// Unsubscribe removes a listener. Unknown handles are ignored.
func (b *Broadcaster) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, s)
}

// Publish delivers the result to every listener. A panicking listener is
// logged and does not prevent the remaining listeners from being notified.
func (b *Broadcaster) Publish(result Result) {
	b.mu.Lock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.Unlock()

	for _, l := range listeners {
		notify(l, result)
	}
}

func notify(l Listener, result Result) {
	defer func() {
		if p := recover(); p != nil {
			logrus.WithField("panic", p).Error("Status listener panicked")
		}
	}()
	l(result)
}
