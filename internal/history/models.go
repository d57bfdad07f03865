package history

import (
	"context"
	"errors"

	"github.com/mreicher/runflow/internal/tracker"
)

// SavedRun is a completed run with its owner.
type SavedRun struct {
	tracker.Run
	UserID string `json:"user_id"`
}

// Store is the append-only run history.
type Store interface {
	Append(ctx context.Context, run SavedRun) error
	// List returns the runs of userID, newest first.
	List(ctx context.Context, userID string) ([]SavedRun, error)
	Get(ctx context.Context, id string) (SavedRun, error)
}

// Publisher announces saved runs to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, run SavedRun) error
}

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrNoPendingRun = errors.New("no pending run")
	ErrDuplicateRun = errors.New("run already saved")
)
