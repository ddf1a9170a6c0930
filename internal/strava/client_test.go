package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) { return string(s), nil }

type failingToken struct{ err error }

func (f failingToken) AccessToken(context.Context) (string, error) { return "", f.err }

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Error(err)
	}
}

func requireBearer(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok")
	}
}

// TestListActivitiesPaginates verifies pages are requested until a short page
// and concatenated in server order.
func TestListActivitiesPaginates(t *testing.T) {
	const perPage = 2
	pages := map[int][]map[string]any{
		1: {
			{"id": 1, "name": "a", "type": "Run", "start_date": "2024-07-01T06:00:00Z"},
			{"id": 2, "name": "b", "type": "Ride", "start_date": "2024-07-01T07:00:00Z"},
		},
		2: {
			{"id": 3, "name": "c", "type": "Workout", "start_date": "2024-07-02T06:00:00Z"},
		},
	}
	var requested []int

	r := chi.NewRouter()
	r.Get("/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		q := r.URL.Query()
		if q.Get("after") != "1719791999" || q.Get("before") != "1719878400" {
			t.Errorf("window after=%s before=%s", q.Get("after"), q.Get("before"))
		}
		if q.Get("per_page") != strconv.Itoa(perPage) {
			t.Errorf("per_page = %s", q.Get("per_page"))
		}
		page, _ := strconv.Atoi(q.Get("page"))
		requested = append(requested, page)
		batch := pages[page]
		if batch == nil {
			batch = []map[string]any{}
		}
		writeTestJSON(t, w, batch)
	})
	ts := httptest.NewServer(r)
	defer ts.Close()

	c := NewClient(ts.URL, staticToken("tok"), Options{PerPage: perPage})
	after := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC).Add(-time.Second)
	before := time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)

	got, err := c.ListActivities(context.Background(), after, before)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d activities, want 3", len(got))
	}
	for i, want := range []int64{1, 2, 3} {
		if got[i].ID != want {
			t.Errorf("activity[%d].ID = %d, want %d", i, got[i].ID, want)
		}
	}
	if len(requested) != 2 {
		t.Errorf("requested pages %v, want [1 2]", requested)
	}
}

// TestListActivitiesStopsOnEmptyPage verifies a full last page is followed by
// exactly one empty page request.
func TestListActivitiesStopsOnEmptyPage(t *testing.T) {
	calls := 0
	r := chi.NewRouter()
	r.Get("/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("page") == "1" {
			writeTestJSON(t, w, []map[string]any{{"id": 1, "type": "Run", "start_date": "2024-07-01T06:00:00Z"}})
			return
		}
		writeTestJSON(t, w, []map[string]any{})
	})
	ts := httptest.NewServer(r)
	defer ts.Close()

	c := NewClient(ts.URL, staticToken("tok"), Options{PerPage: 1})
	got, err := c.ListActivities(context.Background(), time.Unix(0, 0), time.Unix(2000000000, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || calls != 2 {
		t.Errorf("got %d activities in %d calls, want 1 in 2", len(got), calls)
	}
}

// TestGetActivityParsesSplits verifies the detail endpoint maps splits and
// optional fields.
func TestGetActivityParsesSplits(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/activities/{id}", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		if id := chi.URLParam(r, "id"); id != "987" {
			t.Errorf("id = %s", id)
		}
		fmt.Fprint(w, `{
			"id": 987, "name": "Morning Run", "type": "Run", "sport_type": "Run",
			"start_date": "2024-07-01T06:12:00Z",
			"distance": 12980, "moving_time": 4275, "elapsed_time": 4400,
			"average_heartrate": 151.3, "calories": 912.4,
			"splits_metric": [
				{"split": 1, "distance": 1000.2, "elapsed_time": 330, "moving_time": 328,
				 "average_heartrate": 140.6, "elevation_difference": 3.24},
				{"split": 2, "distance": 980, "elapsed_time": 320, "moving_time": 320,
				 "elevation_difference": -1.1}
			]
		}`)
	})
	ts := httptest.NewServer(r)
	defer ts.Close()

	c := NewClient(ts.URL+"/", staticToken("tok"), Options{})
	got, err := c.GetActivity(context.Background(), 987)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind.String() != "Run" || got.Name != "Morning Run" {
		t.Errorf("kind/name = %v/%q", got.Kind, got.Name)
	}
	if got.DistanceM != 12980 || got.MovingTimeS != 4275 || got.ElapsedTimeS != 4400 {
		t.Errorf("totals = %+v", got)
	}
	if got.Calories == nil || *got.Calories != 912.4 {
		t.Errorf("calories = %v", got.Calories)
	}
	if len(got.Splits) != 2 {
		t.Fatalf("splits = %d, want 2", len(got.Splits))
	}
	if got.Splits[0].AverageHeartrate == nil || got.Splits[1].AverageHeartrate != nil {
		t.Errorf("split heart rates = %v, %v", got.Splits[0].AverageHeartrate, got.Splits[1].AverageHeartrate)
	}
	if got.Splits[1].Index != 2 || got.Splits[1].ElevationDifferenceM != -1.1 {
		t.Errorf("split 2 = %+v", got.Splits[1])
	}
	if !got.StartDate.Equal(time.Date(2024, 7, 1, 6, 12, 0, 0, time.UTC)) {
		t.Errorf("start = %v", got.StartDate)
	}
}

// TestAPIErrorCarriesContext verifies non-200 responses surface endpoint and status.
func TestAPIErrorCarriesContext(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/activities/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Rate Limit Exceeded"}`, http.StatusTooManyRequests)
	})
	ts := httptest.NewServer(r)
	defer ts.Close()

	c := NewClient(ts.URL, staticToken("tok"), Options{})
	_, err := c.GetActivity(context.Background(), 5)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Endpoint != "/activities/5" {
		t.Errorf("api error = %+v", apiErr)
	}
}

// TestTokenErrorStopsRequest verifies no request is sent without a token.
func TestTokenErrorStopsRequest(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	sentinel := errors.New("no token")
	c := NewClient(ts.URL, failingToken{err: sentinel}, Options{})
	_, err := c.GetActivity(context.Background(), 1)
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want wrapped sentinel", err)
	}
	if called {
		t.Error("server was called without a token")
	}
}
