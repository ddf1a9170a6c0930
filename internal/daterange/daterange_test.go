package daterange

import (
	"errors"
	"testing"
	"time"
)

// Wednesday afternoon.
var now = time.Date(2024, 7, 10, 15, 30, 0, 0, time.UTC)

// TestResolveDefaultWeek verifies that no arguments select Monday 00:00 UTC through now.
func TestResolveDefaultWeek(t *testing.T) {
	r, err := Resolve(nil, now)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC); !r.Start.Equal(want) {
		t.Errorf("start = %v, want %v", r.Start, want)
	}
	if !r.End.Equal(now) {
		t.Errorf("end = %v, want %v", r.End, now)
	}
	if got := r.Label(); got != "2024-07-08 to 2024-07-10" {
		t.Errorf("label = %q", got)
	}
}

// TestWeekStartOnSunday verifies Sunday belongs to the week that started six days earlier.
func TestWeekStartOnSunday(t *testing.T) {
	sunday := time.Date(2024, 7, 14, 23, 0, 0, 0, time.UTC)
	if got, want := weekStart(sunday), time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("weekStart = %v, want %v", got, want)
	}
	monday := time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC)
	if got := weekStart(monday); !got.Equal(monday) {
		t.Errorf("weekStart(monday) = %v", got)
	}
}

func TestResolveStartOnly(t *testing.T) {
	r, err := Resolve([]string{"2024-07-01"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC); !r.Start.Equal(want) {
		t.Errorf("start = %v", r.Start)
	}
	if !r.End.Equal(now) {
		t.Errorf("end = %v", r.End)
	}
	if got := r.FileName(); got != "Activities-2024-07-01-to-2024-07-10.json" {
		t.Errorf("file name = %q", got)
	}
}

// TestResolveSingleDay verifies that an inclusive single-day range covers exactly
// that calendar day.
func TestResolveSingleDay(t *testing.T) {
	r, err := Resolve([]string{"2024-07-01", "2024-07-01"}, now)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC), false},
		{time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2024, 7, 1, 23, 59, 59, 0, time.UTC), true},
		{time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.at); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
	if got := r.FileName(); got != "Activities-2024-07-01.json" {
		t.Errorf("file name = %q", got)
	}
	if got := r.Label(); got != "2024-07-01 to 2024-07-01" {
		t.Errorf("label = %q", got)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"malformed start", []string{"07/01/2024"}},
		{"malformed end", []string{"2024-07-01", "2024-13-01"}},
		{"start after end", []string{"2024-07-10", "2024-07-01"}},
		{"start in future", []string{"2024-08-01"}},
		{"too many", []string{"2024-07-01", "2024-07-02", "2024-07-03"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.args, now)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}
