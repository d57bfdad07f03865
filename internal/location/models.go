// Package location defines the push-based GPS feed consumed by the run
// tracker and the feeds that implement it.
package location

import (
	"context"
	"errors"
	"time"
)

// Sample is one GPS fix. A nil Altitude means the device did not report one.
// CapturedAt is the arrival time, stamped by the consumer on receipt;
// DeviceTime is whatever clock the device reported and is informational only.
type Sample struct {
	Latitude   float64    `json:"lat"`
	Longitude  float64    `json:"lng"`
	Altitude   *float64   `json:"alt,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
	DeviceTime *time.Time `json:"ts,omitempty"`
}

// Subscription identifies a live watch on a Feed.
type Subscription uint64

// Feed delivers samples asynchronously until the subscription is released.
// Implementations must not invoke callbacks from inside AcquireAndWatch.
type Feed interface {
	AcquireAndWatch(onSample func(Sample), onError func(error)) (Subscription, error)
	Release(sub Subscription)
}

// Prober is implemented by feeds that can report whether the location
// subsystem is reachable before a run starts.
type Prober interface {
	Probe(ctx context.Context) error
}

var (
	ErrUnavailable   = errors.New("location feed unavailable")
	ErrInvalidLatLng = errors.New("latitude must be within [-90,90] and longitude within [-180,180]")
	ErrMalformedFix  = errors.New("malformed location fix")
)

// Validate checks that the coordinates are on the globe.
func (s Sample) Validate() error {
	if s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 {
		return ErrInvalidLatLng
	}
	// NaN fails every comparison above
	if s.Latitude != s.Latitude || s.Longitude != s.Longitude {
		return ErrInvalidLatLng
	}
	return nil
}
