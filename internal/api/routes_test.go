package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"

	"github.com/openwris/hydromap/internal/config"
	"github.com/openwris/hydromap/internal/logger"
	"github.com/openwris/hydromap/internal/service"
)

type stubFeatures struct {
	props service.FeatureProperties
}

func (s *stubFeatures) FeatureInfo(ctx context.Context, kind service.LayerKind, coord orb.Point, resolution float64) (service.FeatureProperties, bool, error) {
	if s.props == nil {
		return nil, false, nil
	}
	return s.props, true, nil
}

type stubSeries struct {
	reservoir []service.ReservoirPoint
}

func (s *stubSeries) ReservoirSeries(ctx context.Context, uniqueID string) []service.ReservoirPoint {
	return s.reservoir
}

func (s *stubSeries) GroundwaterSeries(ctx context.Context, uniqueID string) []service.GroundwaterPoint {
	return nil
}

func newTestAPI(t *testing.T, features *stubFeatures, series *stubSeries) (humatest.TestAPI, *service.MapController) {
	t.Helper()
	controller := service.NewMapController(features, series, service.NewEventBus(), logger.Get(logger.ErrorLevel))
	_, api := humatest.New(t)
	RegisterRoutes(api, &Services{Controller: controller, Config: config.Default()})
	return api, controller
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestGetHealth(t *testing.T) {
	api, _ := newTestAPI(t, &stubFeatures{}, &stubSeries{})

	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d", resp.Code)
	}
	var body HealthBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("status=%q", body.Status)
	}
}

func TestGetLayersInitialState(t *testing.T) {
	api, _ := newTestAPI(t, &stubFeatures{}, &stubSeries{})

	resp := api.Get("/api/v1/layers")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d", resp.Code)
	}
	var body LayersBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Layers) != 2 {
		t.Fatalf("layers=%d, want 2", len(body.Layers))
	}
	for _, l := range body.Layers {
		switch l.Kind {
		case "reservoir":
			if !l.Visible || !l.Active {
				t.Errorf("reservoir = %+v, want visible+active", l)
			}
		case "groundwater":
			if l.Visible || l.Active {
				t.Errorf("groundwater = %+v, want hidden+inactive", l)
			}
		}
	}
}

func TestPutVisibility(t *testing.T) {
	api, controller := newTestAPI(t, &stubFeatures{}, &stubSeries{})

	resp := api.Put("/api/v1/layers/groundwater/visibility", map[string]any{"visible": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	if !controller.Visibility(service.LayerGroundwater) {
		t.Error("visibility not applied")
	}
	if controller.Active() != service.LayerReservoir {
		t.Error("visibility toggle changed the active layer")
	}
}

func TestPutVisibilityUnknownKind(t *testing.T) {
	api, _ := newTestAPI(t, &stubFeatures{}, &stubSeries{})

	resp := api.Put("/api/v1/layers/rainfall/visibility", map[string]any{"visible": true})
	if resp.Code == http.StatusOK {
		t.Fatalf("status=%d, want a client error for an unknown kind", resp.Code)
	}
}

func TestPutActiveForcesVisibility(t *testing.T) {
	api, controller := newTestAPI(t, &stubFeatures{}, &stubSeries{})

	resp := api.Put("/api/v1/layers/groundwater/active")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	if controller.Active() != service.LayerGroundwater {
		t.Error("active layer not applied")
	}
	if !controller.Visibility(service.LayerGroundwater) {
		t.Error("activating a hidden layer must also show it")
	}
}

func TestGetSelectionEmpty(t *testing.T) {
	api, _ := newTestAPI(t, &stubFeatures{}, &stubSeries{})

	resp := api.Get("/api/v1/selection")
	var body SelectionBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Selected {
		t.Error("no feature is selected yet")
	}
}

func TestGetSeriesFiltersAndHidesNaN(t *testing.T) {
	series := &stubSeries{reservoir: []service.ReservoirPoint{
		{Date: day("2021-01-01"), LevelM: 120.5, StorageBCM: 1.2},
		{Date: day("2021-01-05"), LevelM: math.NaN(), StorageBCM: 1.3},
		{Date: day("2021-01-10"), LevelM: 121.0, StorageBCM: 1.4},
	}}
	features := &stubFeatures{props: service.FeatureProperties{"unique_id": "RES-1"}}
	api, controller := newTestAPI(t, features, series)

	if _, err := controller.Select(context.Background(), orb.Point{77, 20}, 10); err != nil {
		t.Fatal(err)
	}

	resp := api.Get("/api/v1/selection/series?from=2021-01-03&to=2021-01-10")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	var body SeriesBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Points) != 2 {
		t.Fatalf("points=%d, want 2", len(body.Points))
	}
	if body.Points[0].Date != "2021-01-05" {
		t.Errorf("first date = %q", body.Points[0].Date)
	}
	if body.Points[0].ReservoirLevel != nil {
		t.Error("NaN level must serialize as an absent field")
	}
	if body.Points[0].StorageValue == nil || *body.Points[0].StorageValue != 1.3 {
		t.Errorf("storage = %v", body.Points[0].StorageValue)
	}
}

func TestGetSeriesWithoutSelection(t *testing.T) {
	api, _ := newTestAPI(t, &stubFeatures{}, &stubSeries{})

	resp := api.Get("/api/v1/selection/series")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", resp.Code)
	}
}
