package strava

import (
	"time"

	"github.com/claude/stravasummary/internal/models"
)

// activityJSON is the subset of the Strava activity representation (summary
// and detailed) that the exporter reads.
type activityJSON struct {
	ID               int64       `json:"id"`
	Name             string      `json:"name"`
	Type             string      `json:"type"`
	SportType        string      `json:"sport_type"`
	StartDate        time.Time   `json:"start_date"`
	Distance         float64     `json:"distance"`     // meters
	MovingTime       int         `json:"moving_time"`  // seconds
	ElapsedTime      int         `json:"elapsed_time"` // seconds
	AverageHeartrate *float64    `json:"average_heartrate"`
	Calories         *float64    `json:"calories"`
	SplitsMetric     []splitJSON `json:"splits_metric"`
}

type splitJSON struct {
	Split               int      `json:"split"`
	Distance            float64  `json:"distance"`
	ElapsedTime         int      `json:"elapsed_time"`
	MovingTime          int      `json:"moving_time"`
	AverageHeartrate    *float64 `json:"average_heartrate"`
	ElevationDifference float64  `json:"elevation_difference"`
}

func (a activityJSON) record() models.ActivityRecord {
	rec := models.ActivityRecord{
		ID:               a.ID,
		Kind:             models.ParseKind(a.Type),
		RawType:          a.Type,
		Name:             a.Name,
		StartDate:        a.StartDate,
		DistanceM:        a.Distance,
		MovingTimeS:      a.MovingTime,
		ElapsedTimeS:     a.ElapsedTime,
		AverageHeartrate: a.AverageHeartrate,
		Calories:         a.Calories,
	}
	for i, s := range a.SplitsMetric {
		idx := s.Split
		if idx == 0 {
			idx = i + 1
		}
		rec.Splits = append(rec.Splits, models.SplitRecord{
			Index:                idx,
			DistanceM:            s.Distance,
			ElapsedTimeS:         s.ElapsedTime,
			MovingTimeS:          s.MovingTime,
			AverageHeartrate:     s.AverageHeartrate,
			ElevationDifferenceM: s.ElevationDifference,
		})
	}
	return rec
}
