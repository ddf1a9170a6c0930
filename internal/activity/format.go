package activity

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatDuration renders seconds as H:MM:SS. Hours are always present and may
// exceed 24.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}

// PacePerKm returns seconds per kilometre, or 0 when distance or time is zero.
func PacePerKm(distanceM float64, seconds int) float64 {
	if distanceM <= 0 || seconds <= 0 {
		return 0
	}
	return float64(seconds) / (distanceM / 1000)
}

// FormatPace renders seconds per kilometre as MM:SS, rounded to the nearest
// second. Non-positive paces render as 00:00.
func FormatPace(secPerKm float64) string {
	if secPerKm <= 0 || math.IsNaN(secPerKm) || math.IsInf(secPerKm, 0) {
		return "00:00"
	}
	total := int(math.Round(secPerKm))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// ParsePace is the inverse of FormatPace.
func ParsePace(s string) (int, error) {
	mm, ss, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("pace %q is not MM:SS", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("pace %q has invalid minutes", s)
	}
	sec, err := strconv.Atoi(ss)
	if err != nil || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("pace %q has invalid seconds", s)
	}
	return m*60 + sec, nil
}

// round rounds v to the given number of decimal places.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
