package wris

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openwris/hydromap/internal/config"
	"github.com/openwris/hydromap/internal/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.API.ReservoirSeriesURL = srv.URL + "/reservoirRawData"
	cfg.API.GroundwaterSeriesURL = srv.URL + "/gwDataRaw"
	cfg.API.TimeoutSeconds = 2
	return New(cfg, logger.Get(logger.ErrorLevel)), srv
}

func TestReservoirSeries(t *testing.T) {
	var gotBody map[string]map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("request body not JSON: %v", err)
		}
		io.WriteString(w, `{"status":"success","data":[
			{"acq_dt":"2021-01-01","current_reservoir_level_m":"120.5","current_live_storage_bcm":"1.2"},
			{"acq_dt":"2021-01-02","current_reservoir_level_m":"abc","current_live_storage_bcm":"1.3"},
			{"acq_dt":"not-a-date","current_reservoir_level_m":"121.0","current_live_storage_bcm":"1.4"}
		]}`)
	})

	points := client.ReservoirSeries(t.Context(), "RES-42")

	if gotBody["data"]["unique_id"] != "RES-42" {
		t.Errorf("request body = %v, want data.unique_id=RES-42", gotBody)
	}
	if len(points) != 2 {
		t.Fatalf("len=%d, want 2 (bad-date row dropped)", len(points))
	}
	if points[0].LevelM != 120.5 || points[0].StorageBCM != 1.2 {
		t.Errorf("first point = %+v", points[0])
	}
	// Unparsable numeric keeps the point with a NaN value.
	if !math.IsNaN(points[1].LevelM) {
		t.Errorf("level = %v, want NaN for unparsable string", points[1].LevelM)
	}
	if points[1].StorageBCM != 1.3 {
		t.Errorf("storage = %v, want 1.3 alongside the NaN level", points[1].StorageBCM)
	}
}

func TestGroundwaterSeriesDropsNullReadings(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"success","data":[
			{"date":"2021-06-01","wl_mbgl":"3.2"},
			{"date":"2021-06-02","wl_mbgl":null},
			{"date":"2021-06-03","wl_mbgl":"n/a"}
		]}`)
	})

	points := client.GroundwaterSeries(t.Context(), "GW-7")
	if len(points) != 2 {
		t.Fatalf("len=%d, want 2: null reading dropped, unparsable kept", len(points))
	}
	if points[0].DepthM != 3.2 {
		t.Errorf("depth = %v", points[0].DepthM)
	}
	if !math.IsNaN(points[1].DepthM) {
		t.Errorf("depth = %v, want NaN for non-null unparsable reading", points[1].DepthM)
	}
}

func TestSeriesEnvelopeNotSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"failed","data":[]}`)
	})

	points := client.ReservoirSeries(t.Context(), "RES-1")
	if points == nil || len(points) != 0 {
		t.Fatalf("points = %v, want empty non-nil slice", points)
	}
}

func TestSeriesServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if got := client.GroundwaterSeries(t.Context(), "GW-1"); len(got) != 0 {
		t.Fatalf("points = %v, want empty on upstream 500", got)
	}
}

func TestSeriesMalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>maintenance</html>`)
	})

	if got := client.ReservoirSeries(t.Context(), "RES-1"); len(got) != 0 {
		t.Fatalf("points = %v, want empty on malformed body", got)
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{"12.5", 12.5},
		{float64(7), 7},
		{json.Number("3.25"), 3.25},
	}
	for _, tc := range cases {
		if got := parseNumber(tc.in); got != tc.want {
			t.Errorf("parseNumber(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []any{"", "abc", true, nil, []int{1}} {
		if got := parseNumber(bad); !math.IsNaN(got) {
			t.Errorf("parseNumber(%v) = %v, want NaN", bad, got)
		}
	}
}

func TestParseDateLayouts(t *testing.T) {
	for _, s := range []string{"2021-01-02", "2021-01-02 13:30:00", "02-Jan-2021", "2021-01-02T13:30:00Z"} {
		if _, ok := parseDate(s); !ok {
			t.Errorf("parseDate(%q) failed", s)
		}
	}
	if _, ok := parseDate("02/01/2021"); ok {
		t.Error("parseDate accepted an unsupported layout")
	}
}
