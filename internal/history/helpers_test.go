package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mreicher/runflow/internal/tracker"
)

type recordingPublisher struct {
	mu   sync.Mutex
	runs []SavedRun
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, run SavedRun) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, run)
	return p.err
}

type failingStore struct{ MemoryStore }

func (*failingStore) Append(context.Context, SavedRun) error { return errors.New("disk full") }

func alt(v float64) *float64 { return &v }

func sampleRun(id string, started time.Time) tracker.Run {
	return tracker.Run{
		ID:                  id,
		Date:                started,
		DistanceMeters:      1700,
		DurationSeconds:     600,
		Splits:              []tracker.Split{{Mile: 1, Time: 560, Pace: 560}},
		Path:                []tracker.LatLng{{Lat: 45, Lng: -122}, {Lat: 45.01, Lng: -122}},
		Altitudes:           []*float64{alt(100), nil, alt(112)},
		ElevationGainMeters: 12,
	}
}
