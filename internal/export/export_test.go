package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/claude/stravasummary/internal/models"
)

func samplePayload() models.ExportPayload {
	hr := 141
	return models.ExportPayload{
		PeriodLabel:     "2024-07-01 to 2024-07-07",
		GeneratedAt:     time.Date(2024, 7, 8, 9, 0, 0, 0, time.UTC),
		TotalActivities: 1,
		Activities: []models.NormalizedSummary{{
			ActivityType: "Run",
			ActivityName: "Morning Run",
			Date:         "2024-07-01",
			Summary: models.ActivitySummary{
				DistanceKm:       12.98,
				MovingTime:       "1:11:15",
				AveragePacePerKm: "05:29",
				Calories:         912,
			},
			Splits: []models.SplitSummary{
				{SplitIndex: 1, PacePerKm: "05:28", DistanceKm: 1, Time: "0:05:28", AvgHR: &hr, ElevationDiffM: 3.2},
				{SplitIndex: 2, PacePerKm: "05:27", DistanceKm: 0.98, Time: "0:05:20", ElevationDiffM: -1.2},
			},
		}},
	}
}

// TestWriteRoundTrip verifies the file parses back into the same payload.
func TestWriteRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "summary")
	want := samplePayload()

	path, size, err := Write(dir, "Activities-2024-07-01-to-2024-07-07.json", want)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "Activities-2024-07-01-to-2024-07-07.json") {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if int64(len(data)) != size {
		t.Errorf("size = %d, file has %d bytes", size, len(data))
	}

	var got models.ExportPayload
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

// TestWriteFieldNames pins the JSON keys consumers depend on.
func TestWriteFieldNames(t *testing.T) {
	path, _, err := Write(t.TempDir(), "Activities-2024-07-01.json", samplePayload())
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"period_label", "generated_at", "total_activities", "activities"} {
		if _, ok := doc[k]; !ok {
			t.Errorf("missing top-level key %q", k)
		}
	}

	act := doc["activities"].([]any)[0].(map[string]any)
	for _, k := range []string{"activity_type", "activity_name", "date", "summary", "splits"} {
		if _, ok := act[k]; !ok {
			t.Errorf("missing activity key %q", k)
		}
	}
	summary := act["summary"].(map[string]any)
	for _, k := range []string{"distance_km", "moving_time", "average_pace_per_km", "calories"} {
		if _, ok := summary[k]; !ok {
			t.Errorf("missing summary key %q", k)
		}
	}
	splits := act["splits"].([]any)
	for _, k := range []string{"split_index", "pace_per_km", "distance_km", "time", "avg_hr", "elevation_diff_m"} {
		if _, ok := splits[0].(map[string]any)[k]; !ok {
			t.Errorf("missing split key %q", k)
		}
	}
	if v, ok := splits[1].(map[string]any)["avg_hr"]; !ok || v != nil {
		t.Errorf("avg_hr without heart rate = %v (present %v), want null", v, ok)
	}
}

// TestWriteEmpty verifies an empty period still writes an activities array.
func TestWriteEmpty(t *testing.T) {
	path, _, err := Write(t.TempDir(), "Activities-2024-07-01.json", models.ExportPayload{
		PeriodLabel: "2024-07-01 to 2024-07-01",
		GeneratedAt: time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"activities": []`) {
		t.Errorf("want empty activities array, got:\n%s", data)
	}
	if !strings.Contains(string(data), `"total_activities": 0`) {
		t.Errorf("want total_activities 0, got:\n%s", data)
	}
}

// TestWriteOverwritesAndCleansUp verifies a rerun replaces the file and leaves
// no temporary files behind.
func TestWriteOverwritesAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	name := "Activities-2024-07-01.json"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Write(dir, name, samplePayload()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != name {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir contents = %v, want only %s", names, name)
	}
	data, _ := os.ReadFile(filepath.Join(dir, name))
	if string(data) == "stale" {
		t.Error("existing export was not replaced")
	}
}

// TestWriteUnwritableDir verifies failures are reported as ErrWrite.
func TestWriteUnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	_, _, err := Write(filepath.Join(blocker, "sub"), "x.json", samplePayload())
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("err = %v, want ErrWrite", err)
	}
}
