// Package daterange resolves command-line date arguments into a UTC time window.
package daterange

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid marks malformed or inconsistent date arguments.
var ErrInvalid = errors.New("invalid date range")

// DateLayout is the accepted argument format.
const DateLayout = "2006-01-02"

// Range is a half-open UTC window [Start, End). End is the midnight after the
// last included day, or the current instant for open-ended ranges.
type Range struct {
	Start time.Time
	End   time.Time
}

// Resolve turns zero, one or two YYYY-MM-DD arguments into a Range.
//
//	()                 Monday 00:00 UTC of the current week through now
//	(start)            start 00:00 UTC through now
//	(start, end)       start 00:00 UTC through the end of end, inclusive
func Resolve(args []string, now time.Time) (Range, error) {
	now = now.UTC()
	switch len(args) {
	case 0:
		return Range{Start: weekStart(now), End: now}, nil
	case 1:
		start, err := parseDate(args[0], "start")
		if err != nil {
			return Range{}, err
		}
		if start.After(now) {
			return Range{}, fmt.Errorf("%w: start date %s is in the future", ErrInvalid, args[0])
		}
		return Range{Start: start, End: now}, nil
	case 2:
		start, err := parseDate(args[0], "start")
		if err != nil {
			return Range{}, err
		}
		end, err := parseDate(args[1], "end")
		if err != nil {
			return Range{}, err
		}
		if start.After(end) {
			return Range{}, fmt.Errorf("%w: start date %s is after end date %s", ErrInvalid, args[0], args[1])
		}
		return Range{Start: start, End: end.AddDate(0, 0, 1)}, nil
	default:
		return Range{}, fmt.Errorf("%w: expected at most 2 dates, got %d", ErrInvalid, len(args))
	}
}

func parseDate(s, which string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s date %q is not YYYY-MM-DD", ErrInvalid, which, s)
	}
	return t, nil
}

// weekStart returns Monday 00:00 UTC of the week containing t.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}

// Contains reports whether t falls inside [Start, End).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// LastDay is the calendar date of the last instant covered by the range.
func (r Range) LastDay() time.Time {
	last := r.End.Add(-time.Nanosecond)
	return time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
}

// Label renders the range as "YYYY-MM-DD to YYYY-MM-DD".
func (r Range) Label() string {
	return fmt.Sprintf("%s to %s", r.Start.Format(DateLayout), r.LastDay().Format(DateLayout))
}

// FileName is the export file name for the range.
func (r Range) FileName() string {
	start := r.Start.Format(DateLayout)
	end := r.LastDay().Format(DateLayout)
	if start == end {
		return fmt.Sprintf("Activities-%s.json", start)
	}
	return fmt.Sprintf("Activities-%s-to-%s.json", start, end)
}
