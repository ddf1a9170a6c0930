package activity

import (
	"errors"
	"fmt"
	"math"

	"github.com/claude/stravasummary/internal/models"
)

// errUnsupportedKind is returned by Normalize for activities the export does
// not cover.
var errUnsupportedKind = errors.New("activity kind is not exported")

// Normalize derives the export summary of rec. Runs keep their splits;
// workouts are summarised for duration only.
func Normalize(rec models.ActivityRecord) (models.NormalizedSummary, error) {
	switch rec.Kind {
	case models.KindRun:
		sum := baseSummary(rec)
		for i, s := range rec.Splits {
			sum.Splits = append(sum.Splits, normalizeSplit(i, s))
		}
		return sum, nil
	case models.KindWorkout:
		return baseSummary(rec), nil
	case models.KindOther:
		return models.NormalizedSummary{}, fmt.Errorf("%w: %q", errUnsupportedKind, rec.RawType)
	default:
		return models.NormalizedSummary{}, fmt.Errorf("unhandled activity kind %v", rec.Kind)
	}
}

func baseSummary(rec models.ActivityRecord) models.NormalizedSummary {
	moving := rec.MovingTimeS
	if moving <= 0 {
		moving = rec.ElapsedTimeS
	}
	calories := 0
	if rec.Calories != nil {
		calories = int(math.Round(*rec.Calories))
	}
	return models.NormalizedSummary{
		ActivityType: rec.Kind.String(),
		ActivityName: rec.Name,
		Date:         rec.StartDate.UTC().Format("2006-01-02"),
		Summary: models.ActivitySummary{
			DistanceKm:       round(rec.DistanceM/1000, 2),
			MovingTime:       FormatDuration(moving),
			AveragePacePerKm: FormatPace(PacePerKm(rec.DistanceM, moving)),
			Calories:         calories,
		},
		Splits: []models.SplitSummary{},
	}
}

// normalizeSplit uses the split's moving time, falling back to elapsed time
// for splits recorded without one.
func normalizeSplit(i int, s models.SplitRecord) models.SplitSummary {
	seconds := s.MovingTimeS
	if seconds <= 0 {
		seconds = s.ElapsedTimeS
	}
	index := s.Index
	if index <= 0 {
		index = i + 1
	}
	var hr *int
	if s.AverageHeartrate != nil {
		v := int(math.Round(*s.AverageHeartrate))
		hr = &v
	}
	return models.SplitSummary{
		SplitIndex:     index,
		PacePerKm:      FormatPace(PacePerKm(s.DistanceM, seconds)),
		DistanceKm:     round(s.DistanceM/1000, 2),
		Time:           FormatDuration(seconds),
		AvgHR:          hr,
		ElevationDiffM: round(s.ElevationDifferenceM, 1),
	}
}
