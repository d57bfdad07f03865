package tracker

import (
	"time"

	"github.com/mreicher/runflow/internal/location"
)

// Phase is the run lifecycle state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseArmed   Phase = "armed"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
	PhaseStopped Phase = "stopped"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Split is the time and pace recorded for one completed mile.
type Split struct {
	Mile int     `json:"mile"`
	Time int     `json:"time"`
	Pace float64 `json:"pace"`
}

// Run is the finished, immutable record of a run handed to storage.
type Run struct {
	ID                  string     `json:"id"`
	RunnerID            string     `json:"runner_id,omitempty"`
	Date                time.Time  `json:"date"`
	DistanceMeters      float64    `json:"distance_m"`
	DurationSeconds     int        `json:"duration_sec"`
	Splits              []Split    `json:"splits"`
	Path                []LatLng   `json:"path"`
	Altitudes           []*float64 `json:"altitudes"`
	ElevationGainMeters float64    `json:"elevation_gain_m"`
}

type splitMarker struct {
	elapsedSeconds int
	distanceMeters float64
}

type runState struct {
	phase               Phase
	elapsedSeconds      int
	distanceMeters      float64
	elevationGainMeters float64
	path                []LatLng
	altitudes           []*float64
	splits              []Split
	marker              splitMarker
	history             []location.Sample
	instantPace         float64
}

// Snapshot is a consistent, copied view of the engine after an event.
type Snapshot struct {
	Phase               Phase      `json:"phase"`
	RunnerID            string     `json:"runner_id,omitempty"`
	Ready               bool       `json:"ready"`
	Degraded            bool       `json:"degraded"`
	ElapsedSeconds      int        `json:"elapsed_sec"`
	DistanceMeters      float64    `json:"distance_m"`
	ElevationGainMeters float64    `json:"elevation_gain_m"`
	InstantPace         float64    `json:"instant_pace"`
	AveragePace         float64    `json:"average_pace"`
	CurrentMilePace     float64    `json:"current_mile_pace"`
	Splits              []Split    `json:"splits"`
	Path                []LatLng   `json:"path"`
	Altitudes           []*float64 `json:"altitudes"`
	Display             Display    `json:"display"`
}

// Display holds the snapshot figures rendered for a stats screen.
type Display struct {
	Time            string `json:"time"`
	Miles           string `json:"miles"`
	AveragePace     string `json:"average_pace"`
	InstantPace     string `json:"instant_pace"`
	CurrentMilePace string `json:"current_mile_pace"`
	ElevationGain   string `json:"elevation_gain"`
}
