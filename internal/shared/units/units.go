// Package units converts and renders run measurements for display.
package units

import (
	"fmt"
	"math"
)

const (
	// MetersPerMile is the statute mile used for splits and pace.
	MetersPerMile = 1609.34
	feetPerMeter  = 3.28084
)

// PaceUnknown is the pace reported when no distance (or no time) has been
// covered yet. FormatPace renders it as a placeholder.
const PaceUnknown = 0.0

func MetersToMiles(meters float64) float64 {
	return meters / MetersPerMile
}

// Pace returns seconds per mile for the given time and distance, or
// PaceUnknown when either is not positive.
func Pace(seconds, meters float64) float64 {
	miles := MetersToMiles(meters)
	if !(miles > 0) || !(seconds > 0) || math.IsInf(miles, 0) || math.IsInf(seconds, 0) {
		return PaceUnknown
	}
	return seconds / miles
}

// FormatTime renders seconds as MM:SS, or H:MM:SS from one hour up.
func FormatTime(totalSeconds float64) string {
	if math.IsNaN(totalSeconds) || math.IsInf(totalSeconds, 0) || totalSeconds < 0 {
		totalSeconds = 0
	}
	hours := int(math.Floor(totalSeconds / 3600))
	minutes := int(math.Floor(math.Mod(totalSeconds, 3600) / 60))
	seconds := int(math.Floor(math.Mod(totalSeconds, 60)))

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// FormatPace renders seconds per mile as MM:SS, or "--:--" for an unknown
// or non-finite pace.
func FormatPace(secondsPerMile float64) string {
	if math.IsNaN(secondsPerMile) || math.IsInf(secondsPerMile, 0) || secondsPerMile <= 0 {
		return "--:--"
	}
	return FormatTime(secondsPerMile)
}

// FormatElevation renders meters as whole feet, e.g. "33 ft".
func FormatElevation(meters float64) string {
	return fmt.Sprintf("%d ft", int(math.Round(meters*feetPerMeter)))
}

func MetersToFeet(meters float64) float64 {
	return meters * feetPerMeter
}
