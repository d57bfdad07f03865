package location

import (
	"sync"
	"sync/atomic"
)

type watcher struct {
	onSample func(Sample)
	onError  func(error)
	active   atomic.Bool
}

// Source is an in-process Feed. Producers call Push; every live subscription
// receives the sample on the producer's goroutine.
type Source struct {
	mu       sync.RWMutex
	next     Subscription
	watchers map[Subscription]*watcher
}

func NewSource() *Source {
	return &Source{watchers: map[Subscription]*watcher{}}
}

func (s *Source) AcquireAndWatch(onSample func(Sample), onError func(error)) (Subscription, error) {
	w := &watcher{onSample: onSample, onError: onError}
	w.active.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.watchers[s.next] = w
	return s.next, nil
}

// Release deactivates the subscription before returning; a Push already in
// flight will skip it.
func (s *Source) Release(sub Subscription) {
	s.mu.Lock()
	w, ok := s.watchers[sub]
	delete(s.watchers, sub)
	s.mu.Unlock()

	if ok {
		w.active.Store(false)
	}
}

// Push delivers a sample and returns how many subscriptions received it.
func (s *Source) Push(sample Sample) int {
	delivered := 0
	for _, w := range s.snapshot() {
		if !w.active.Load() || w.onSample == nil {
			continue
		}
		w.onSample(sample)
		delivered++
	}
	return delivered
}

// Fail reports a feed error to every live subscription.
func (s *Source) Fail(err error) {
	for _, w := range s.snapshot() {
		if w.active.Load() && w.onError != nil {
			w.onError(err)
		}
	}
}

// Watching reports the number of live subscriptions.
func (s *Source) Watching() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers)
}

// snapshot copies the watcher set so callbacks run without s.mu held.
func (s *Source) snapshot() []*watcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		out = append(out, w)
	}
	return out
}
