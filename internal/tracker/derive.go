package tracker

import (
	"math"
	"time"

	"github.com/mreicher/runflow/internal/location"
	"github.com/mreicher/runflow/internal/shared/geo"
	"github.com/mreicher/runflow/internal/shared/units"
)

const (
	// InstantPaceWindow bounds the samples used for instantaneous pace.
	InstantPaceWindow = 5 * time.Second
	// MinRunDistanceMeters is the distance a run must exceed to be kept.
	MinRunDistanceMeters = 10.0
)

func sampleDistance(a, b location.Sample) float64 {
	return geo.HaversineM(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// elevationGain returns the climb from prev to cur; descents and unknown
// altitudes count as zero.
func elevationGain(prev, cur *float64) float64 {
	if prev == nil || cur == nil || *cur <= *prev {
		return 0
	}
	return *cur - *prev
}

// applySample records an accepted sample: path, altitude, distance, climb and
// the pace window.
func applySample(st *runState, s location.Sample) {
	st.path = append(st.path, LatLng{Lat: s.Latitude, Lng: s.Longitude})
	st.altitudes = append(st.altitudes, copyAltitude(s.Altitude))

	if n := len(st.history); n > 0 {
		prev := st.history[n-1]
		st.distanceMeters += sampleDistance(prev, s)
		st.elevationGainMeters += elevationGain(prev.Altitude, s.Altitude)
	}

	st.history = pruneHistory(append(st.history, s), s.CapturedAt)
}

// pruneHistory drops samples older than the pace window relative to newest,
// always keeping the most recent sample for the next distance delta.
func pruneHistory(history []location.Sample, newest time.Time) []location.Sample {
	cut := 0
	for cut < len(history)-1 && newest.Sub(history[cut].CapturedAt) > InstantPaceWindow {
		cut++
	}
	if cut == 0 {
		return history
	}
	return append(history[:0], history[cut:]...)
}

// instantPace computes seconds per mile over samples no older than the pace
// window at now. ok is false when the window cannot produce a pace.
func instantPace(history []location.Sample, now time.Time) (pace float64, ok bool) {
	first, last := -1, -1
	for i, s := range history {
		if now.Sub(s.CapturedAt) <= InstantPaceWindow {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 || first == last {
		return 0, false
	}

	oldest, newest := history[first], history[last]
	seconds := newest.CapturedAt.Sub(oldest.CapturedAt).Seconds()
	pace = units.Pace(seconds, sampleDistance(oldest, newest))
	if pace == units.PaceUnknown {
		return 0, false
	}
	return pace, true
}

// nextSplit reports the split due at the current totals, if any. At most one
// split is produced per call.
func nextSplit(st *runState) (Split, bool) {
	completed := int(math.Floor(st.distanceMeters / units.MetersPerMile))
	if completed <= len(st.splits) {
		return Split{}, false
	}
	splitTime := st.elapsedSeconds - st.marker.elapsedSeconds
	return Split{
		Mile: len(st.splits) + 1,
		Time: splitTime,
		Pace: units.Pace(float64(splitTime), st.distanceMeters-st.marker.distanceMeters),
	}, true
}

func averagePace(st *runState) float64 {
	return units.Pace(float64(st.elapsedSeconds), st.distanceMeters)
}

func currentMilePace(st *runState) float64 {
	return units.Pace(
		float64(st.elapsedSeconds-st.marker.elapsedSeconds),
		st.distanceMeters-st.marker.distanceMeters,
	)
}

func copyAltitude(alt *float64) *float64 {
	if alt == nil {
		return nil
	}
	v := *alt
	return &v
}
