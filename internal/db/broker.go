package db

import "sync"

// broker fans document writes out to watchers. Notifications coalesce: a watcher that
// is busy re-reading sees at most one pending wake-up, then reads the latest state.
type broker struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

type subscription struct {
	match func(path string) bool
	ch    chan struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[*subscription]struct{})}
}

func (b *broker) subscribe(match func(path string) bool) *subscription {
	sub := &subscription{match: match, ch: make(chan struct{}, 1)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

func (b *broker) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}

func (b *broker) publish(paths ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		for _, p := range paths {
			if sub.match(p) {
				select {
				case sub.ch <- struct{}{}:
				default:
				}
				break
			}
		}
	}
}

// close wakes every watcher with a closed channel so it returns.
func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}
