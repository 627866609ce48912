package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/example/studentkit/internal/metrics"
)

// ErrServiceClosed is returned when subscribing after Close.
var ErrServiceClosed = errors.New("service is closed")

// subscriptions tracks the listener goroutines of a service so Close can stop them.
type subscriptions struct {
	mu      sync.Mutex
	next    int
	cancels map[int]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func newSubscriptions(logger *zap.Logger, m *metrics.Metrics) *subscriptions {
	return &subscriptions{cancels: map[int]context.CancelFunc{}, logger: logger, metrics: m}
}

// listener hands snapshots to the subscriber's callback.
type listener struct {
	ctx  context.Context
	busy atomic.Bool
}

// deliver runs f unless the subscription has been cancelled.
func (l *listener) deliver(f func()) {
	if l.ctx.Err() != nil {
		return
	}
	l.busy.Store(true)
	defer l.busy.Store(false)
	f()
}

// start runs watch in a goroutine until the returned Unsubscribe is called or ctx is
// done or the registry is closed. watch passes every callback through l.deliver.
//
// Unsubscribe waits for the goroutine unless a callback is running, so a callback may
// unsubscribe itself. No callback starts after Unsubscribe returns.
func (s *subscriptions) start(ctx context.Context, name string, watch func(ctx context.Context, l *listener) error) (Unsubscribe, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	id := s.next
	s.next++
	s.cancels[id] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	l := &listener{ctx: ctx}
	s.metrics.SubscriptionOpened()
	done := make(chan struct{})
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer s.metrics.SubscriptionClosed()
		defer s.remove(id)
		if err := watch(ctx, l); err != nil {
			s.logger.Warn("Listener stopped with error", zap.String("listener", name), zap.Error(err))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			if !l.busy.Load() {
				<-done
			}
		})
	}, nil
}

func (s *subscriptions) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
}

// close cancels every listener and waits for them to return.
func (s *subscriptions) close() {
	s.mu.Lock()
	s.closed = true
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// count is the number of listeners still running.
func (s *subscriptions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}
