// Package activity turns fetched activities into the export payload and the
// Markdown report.
package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/claude/stravasummary/internal/auth"
	"github.com/claude/stravasummary/internal/daterange"
	"github.com/claude/stravasummary/internal/models"
)

// ErrListFetch marks a failure to list activities. The run cannot continue
// because the set of activities is unknown.
var ErrListFetch = errors.New("listing activities failed")

// FetchError is a failed detail fetch for one activity. It is logged and the
// activity is left out of the export.
type FetchError struct {
	ActivityID int64
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("activity %d: %v", e.ActivityID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Source fetches activities from the remote service.
type Source interface {
	ListActivities(ctx context.Context, after, before time.Time) ([]models.ActivityRecord, error)
	GetActivity(ctx context.Context, id int64) (models.ActivityRecord, error)
}

// State is the progress of a pipeline run.
type State int

const (
	StateIdle State = iota
	StateFetchingList
	StateFetchingDetail
	StateNormalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingList:
		return "fetching list"
	case StateFetchingDetail:
		return "fetching detail"
	case StateNormalizing:
		return "normalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats counts what happened to each listed activity.
type Stats struct {
	Listed     int
	OutOfRange int
	Runs       int
	Workouts   int
	Skipped    int // unsupported activity types
	Failed     int // detail fetch errors
	FailedIDs  []int64
}

// Result is the outcome of a run. Reports[i] renders Payload.Activities[i].
type Result struct {
	Payload models.ExportPayload
	Reports []string
	Stats   Stats
}

// Pipeline fetches and normalizes the activities of one date range.
type Pipeline struct {
	src   Source
	now   func() time.Time
	log   *slog.Logger
	state State
}

// New creates a Pipeline. now stamps the export's generated_at.
func New(src Source, now func() time.Time, log *slog.Logger) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{src: src, now: now, log: log}
}

// State returns the current run state.
func (p *Pipeline) State() State {
	return p.state
}

// Run processes every activity that starts inside r, one at a time, in
// ascending start order.
func (p *Pipeline) Run(ctx context.Context, r daterange.Range) (*Result, error) {
	p.state = StateFetchingList
	// The API's after bound is exclusive; step back a second to include r.Start.
	listed, err := p.src.ListActivities(ctx, r.Start.Add(-time.Second), r.End)
	if err != nil {
		p.state = StateFailed
		return nil, fmt.Errorf("%w: %w", ErrListFetch, err)
	}

	res := &Result{Stats: Stats{Listed: len(listed)}}
	inRange := make([]models.ActivityRecord, 0, len(listed))
	for _, a := range listed {
		if !r.Contains(a.StartDate) {
			res.Stats.OutOfRange++
			p.log.Debug("activity outside range", "activity_id", a.ID, "start", a.StartDate)
			continue
		}
		inRange = append(inRange, a)
	}
	sort.SliceStable(inRange, func(i, j int) bool {
		return inRange[i].StartDate.Before(inRange[j].StartDate)
	})
	p.log.Info("found activities", "listed", len(listed), "in_range", len(inRange))

	summaries := make([]models.NormalizedSummary, 0, len(inRange))
	for _, a := range inRange {
		switch a.Kind {
		case models.KindRun, models.KindWorkout:
		case models.KindOther:
			res.Stats.Skipped++
			p.log.Info("skipping activity",
				"activity_id", a.ID, "name", a.Name, "type", a.RawType,
				"date", a.StartDate.UTC().Format(daterange.DateLayout))
			continue
		default:
			p.state = StateFailed
			return nil, fmt.Errorf("unhandled activity kind %v for activity %d", a.Kind, a.ID)
		}

		p.state = StateFetchingDetail
		detail, err := p.src.GetActivity(ctx, a.ID)
		if err != nil {
			if isFatal(ctx, err) {
				p.state = StateFailed
				return nil, err
			}
			fe := &FetchError{ActivityID: a.ID, Err: err}
			res.Stats.Failed++
			res.Stats.FailedIDs = append(res.Stats.FailedIDs, a.ID)
			p.log.Warn("excluding activity after detail fetch failed",
				"activity_id", a.ID, "name", a.Name, "error", fe)
			continue
		}
		// The listing decides the kind; detail payloads are trusted for figures only.
		detail.Kind = a.Kind
		if detail.StartDate.IsZero() {
			detail.StartDate = a.StartDate
		}

		p.state = StateNormalizing
		sum, err := Normalize(detail)
		if err != nil {
			p.state = StateFailed
			return nil, fmt.Errorf("normalizing activity %d: %w", a.ID, err)
		}
		switch a.Kind {
		case models.KindRun:
			res.Stats.Runs++
		case models.KindWorkout:
			res.Stats.Workouts++
		}
		summaries = append(summaries, sum)
		res.Reports = append(res.Reports, FormatReport(sum))
	}

	res.Payload = models.ExportPayload{
		PeriodLabel:     r.Label(),
		GeneratedAt:     p.now().UTC(),
		TotalActivities: len(summaries),
		Activities:      summaries,
	}
	p.state = StateDone
	return res, nil
}

// isFatal reports errors that would fail every remaining request too.
func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, auth.ErrRevoked) ||
		errors.Is(err, auth.ErrRefreshFailed) ||
		errors.Is(err, auth.ErrPersist)
}
