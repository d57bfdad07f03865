// Package history keeps completed runs: a single pending run awaiting the
// runner's save or discard decision, and the saved run list.
package history

import (
	"context"
	"log"
	"sync"

	"github.com/mreicher/runflow/internal/tracker"
)

type Service struct {
	store     Store
	publisher Publisher

	mu      sync.Mutex
	pending *SavedRun
}

// NewService builds the service; publisher may be nil.
func NewService(store Store, publisher Publisher) *Service {
	return &Service{store: store, publisher: publisher}
}

// Complete holds run as pending for userID, replacing any earlier pending
// run.
func (s *Service) Complete(userID string, run tracker.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		log.Printf("history: pending run %s replaced by %s", s.pending.ID, run.ID)
	}
	s.pending = &SavedRun{Run: run, UserID: userID}
}

func (s *Service) Pending(userID string) (SavedRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.UserID != userID {
		return SavedRun{}, ErrNoPendingRun
	}
	return *s.pending, nil
}

// SavePending appends the pending run to the store. Publishing is best
// effort; failures are logged.
func (s *Service) SavePending(ctx context.Context, userID string) (SavedRun, error) {
	s.mu.Lock()
	if s.pending == nil || s.pending.UserID != userID {
		s.mu.Unlock()
		return SavedRun{}, ErrNoPendingRun
	}
	run := *s.pending
	s.mu.Unlock()

	if err := s.store.Append(ctx, run); err != nil {
		return SavedRun{}, err
	}

	s.mu.Lock()
	if s.pending != nil && s.pending.ID == run.ID {
		s.pending = nil
	}
	s.mu.Unlock()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, run); err != nil {
			log.Printf("history: publish run %s: %v", run.ID, err)
		}
	}
	return run, nil
}

func (s *Service) DiscardPending(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.UserID != userID {
		return ErrNoPendingRun
	}
	s.pending = nil
	return nil
}

func (s *Service) List(ctx context.Context, userID string) ([]SavedRun, error) {
	return s.store.List(ctx, userID)
}

// Get returns a saved run owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (SavedRun, error) {
	run, err := s.store.Get(ctx, id)
	if err != nil {
		return SavedRun{}, err
	}
	if run.UserID != userID {
		return SavedRun{}, ErrRunNotFound
	}
	return run, nil
}
