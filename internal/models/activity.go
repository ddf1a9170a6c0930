package models

import (
	"fmt"
	"time"
)

// Kind is the closed set of activity kinds the pipeline distinguishes.
type Kind int

const (
	KindOther Kind = iota
	KindRun
	KindWorkout
)

// Strava type names that map to a known Kind.
const (
	TypeRun     = "Run"
	TypeWorkout = "Workout"
)

// ParseKind maps a Strava activity type to a Kind. Unknown types are KindOther.
func ParseKind(activityType string) Kind {
	switch activityType {
	case TypeRun:
		return KindRun
	case TypeWorkout:
		return KindWorkout
	default:
		return KindOther
	}
}

func (k Kind) String() string {
	switch k {
	case KindRun:
		return TypeRun
	case KindWorkout:
		return TypeWorkout
	case KindOther:
		return "Other"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ActivityRecord is a single activity as fetched from the remote service.
type ActivityRecord struct {
	ID               int64
	Kind             Kind
	RawType          string
	Name             string
	StartDate        time.Time
	DistanceM        float64
	MovingTimeS      int
	ElapsedTimeS     int
	AverageHeartrate *float64
	Calories         *float64
	Splits           []SplitRecord
}

// SplitRecord is one fixed-distance segment of a run. Index is 1-based.
type SplitRecord struct {
	Index                int
	DistanceM            float64
	ElapsedTimeS         int
	MovingTimeS          int
	AverageHeartrate     *float64
	ElevationDifferenceM float64
}
