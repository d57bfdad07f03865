// Package export renders completed runs for download and summary views.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"

	"github.com/mreicher/runflow/internal/shared/units"
	"github.com/mreicher/runflow/internal/tracker"
)

const SplitsFilename = "runflow_splits.csv"

var ErrNotEnoughAltitudes = errors.New("elevation profile needs at least two known altitudes")

// SplitsCSV renders one row per split, in split order, under the header
// Mile,Time,Pace.
func SplitsCSV(splits []tracker.Split) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Mile", "Time", "Pace"}); err != nil {
		return nil, err
	}
	for _, s := range splits {
		row := []string{
			strconv.Itoa(s.Mile),
			units.FormatTime(float64(s.Time)),
			units.FormatPace(s.Pace),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write splits csv: %w", err)
	}
	return buf.Bytes(), nil
}

type ProfilePoint struct {
	Miles         string  `json:"miles"`
	ElevationFeet float64 `json:"elevation_ft"`
}

// ElevationProfile spreads the known altitudes evenly over the run distance.
// Unknown altitudes are skipped.
func ElevationProfile(altitudes []*float64, distanceMeters float64) ([]ProfilePoint, error) {
	known := make([]float64, 0, len(altitudes))
	for _, a := range altitudes {
		if a != nil {
			known = append(known, *a)
		}
	}
	if len(known) < 2 {
		return nil, ErrNotEnoughAltitudes
	}

	total := units.MetersToMiles(distanceMeters)
	points := make([]ProfilePoint, len(known))
	for i, alt := range known {
		progress := float64(i) / float64(len(known)-1)
		points[i] = ProfilePoint{
			Miles:         fmt.Sprintf("%.2f", progress*total),
			ElevationFeet: units.MetersToFeet(alt),
		}
	}
	return points, nil
}

type RunSummary struct {
	ID            string     `json:"id"`
	Miles         string     `json:"miles"`
	Time          string     `json:"time"`
	AveragePace   string     `json:"average_pace"`
	ElevationGain string     `json:"elevation_gain"`
	Splits        []SplitRow `json:"splits"`
}

type SplitRow struct {
	Mile int    `json:"mile"`
	Time string `json:"time"`
	Pace string `json:"pace"`
}

// Summary renders the headline figures of a completed run.
func Summary(run tracker.Run) RunSummary {
	rows := make([]SplitRow, len(run.Splits))
	for i, s := range run.Splits {
		rows[i] = SplitRow{Mile: s.Mile, Time: units.FormatTime(float64(s.Time)), Pace: units.FormatPace(s.Pace)}
	}
	return RunSummary{
		ID:            run.ID,
		Miles:         fmt.Sprintf("%.2f", units.MetersToMiles(run.DistanceMeters)),
		Time:          units.FormatTime(float64(run.DurationSeconds)),
		AveragePace:   units.FormatPace(units.Pace(float64(run.DurationSeconds), run.DistanceMeters)),
		ElevationGain: units.FormatElevation(run.ElevationGainMeters),
		Splits:        rows,
	}
}
