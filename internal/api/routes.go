// Package api defines the Huma REST routes for hydromap.
package api

import (
	"context"
	"math"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/openwris/hydromap/internal/config"
	"github.com/openwris/hydromap/internal/service"
)

// Services holds the dependencies for API handlers.
type Services struct {
	Controller *service.MapController
	Config     config.Config
}

// RegisterRoutes registers all REST routes on the given API.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// Types

type KindInput struct {
	Kind string `path:"kind" enum:"reservoir,groundwater" doc:"Layer kind"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type LayerStatus struct {
	Kind    string `json:"kind" doc:"Layer kind" example:"reservoir"`
	Title   string `json:"title" doc:"Display title"`
	WMSName string `json:"wmsName" doc:"Qualified WMS layer name"`
	Visible bool   `json:"visible" doc:"Whether the overlay is rendered"`
	Active  bool   `json:"active" doc:"Whether this layer answers feature-info queries"`
}

type LayersBody struct {
	Layers []LayerStatus `json:"layers"`
}

type VisibilityInput struct {
	KindInput
	Body struct {
		Visible bool `json:"visible" doc:"New visibility"`
	}
}

type SelectionBody struct {
	Selected   bool                      `json:"selected"`
	Kind       string                    `json:"kind,omitempty"`
	Properties service.FeatureProperties `json:"properties,omitempty"`
	From       string                    `json:"from,omitempty"`
	To         string                    `json:"to,omitempty"`
	Points     int                       `json:"points"`
}

type SeriesPoint struct {
	Date           string   `json:"date"`
	ReservoirLevel *float64 `json:"reservoirLevel,omitempty"`
	StorageValue   *float64 `json:"storageValue,omitempty"`
	WaterLevel     *float64 `json:"waterLevel,omitempty"`
}

type SeriesInput struct {
	From string `query:"from" doc:"Inclusive lower date bound (YYYY-MM-DD), empty for unbounded" required:"false"`
	To   string `query:"to" doc:"Inclusive upper date bound (YYYY-MM-DD), empty for unbounded" required:"false"`
}

type SeriesBody struct {
	Kind   string        `json:"kind"`
	Points []SeriesPoint `json:"points"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers layer state routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{kind}/visibility", h.PutVisibility, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{kind}/active", h.PutActive, huma.OperationTags("layers"))
}

// RegisterSelection registers selection and series routes.
func (h *APIHandler) RegisterSelection(api huma.API) {
	huma.Get(api, "/api/v1/selection", h.GetSelection, huma.OperationTags("selection"))
	huma.Get(api, "/api/v1/selection/series", h.GetSeries, huma.OperationTags("selection"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body LayersBody }, error) {
	c := h.svc.Controller
	var layers []LayerStatus
	for _, kind := range []service.LayerKind{service.LayerReservoir, service.LayerGroundwater} {
		cfg := h.svc.Config.WMS.Layers[string(kind)]
		layers = append(layers, LayerStatus{
			Kind:    string(kind),
			Title:   cfg.Title,
			WMSName: cfg.Name,
			Visible: c.Visibility(kind),
			Active:  c.Active() == kind,
		})
	}
	return &struct{ Body LayersBody }{Body: LayersBody{Layers: layers}}, nil
}

func (h *APIHandler) PutVisibility(ctx context.Context, input *VisibilityInput) (*struct{ Body LayersBody }, error) {
	if err := h.svc.Controller.SetVisibility(service.LayerKind(input.Kind), input.Body.Visible); err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return h.GetLayers(ctx, nil)
}

func (h *APIHandler) PutActive(ctx context.Context, input *KindInput) (*struct{ Body LayersBody }, error) {
	if err := h.svc.Controller.SetActive(service.LayerKind(input.Kind)); err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return h.GetLayers(ctx, nil)
}

func (h *APIHandler) GetSelection(ctx context.Context, input *struct{}) (*struct{ Body SelectionBody }, error) {
	sel := h.svc.Controller.Selection()
	if sel == nil {
		return &struct{ Body SelectionBody }{Body: SelectionBody{Selected: false}}, nil
	}
	body := SelectionBody{
		Selected:   true,
		Kind:       string(sel.Kind),
		Properties: sel.Properties,
		Points:     sel.SeriesLen(),
	}
	if !sel.Range.From.IsZero() {
		body.From = sel.Range.From.Format("2006-01-02")
	}
	if !sel.Range.To.IsZero() {
		body.To = sel.Range.To.Format("2006-01-02")
	}
	return &struct{ Body SelectionBody }{Body: body}, nil
}

func (h *APIHandler) GetSeries(ctx context.Context, input *SeriesInput) (*struct{ Body SeriesBody }, error) {
	sel := h.svc.Controller.Selection()
	if sel == nil {
		return nil, huma.Error404NotFound("no feature selected")
	}

	r := sel.Range
	if input.From != "" || input.To != "" {
		r = service.DateRange{}
		if t, ok := parseDay(input.From); ok {
			r.From = t
		}
		if t, ok := parseDay(input.To); ok {
			r.To = t
		}
	}

	body := SeriesBody{Kind: string(sel.Kind), Points: []SeriesPoint{}}
	switch sel.Kind {
	case service.LayerGroundwater:
		for _, p := range service.FilterGroundwater(sel.Groundwater, r) {
			body.Points = append(body.Points, SeriesPoint{
				Date:       p.Date.UTC().Format("2006-01-02"),
				WaterLevel: jsonNumber(p.DepthM),
			})
		}
	default:
		for _, p := range service.FilterReservoir(sel.Reservoir, r) {
			body.Points = append(body.Points, SeriesPoint{
				Date:           p.Date.UTC().Format("2006-01-02"),
				ReservoirLevel: jsonNumber(p.LevelM),
				StorageValue:   jsonNumber(p.StorageBCM),
			})
		}
	}
	return &struct{ Body SeriesBody }{Body: body}, nil
}

// jsonNumber hides NaN from the JSON encoder; a NaN reading serializes as an
// absent field, mirroring the gap the chart renders.
func jsonNumber(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func parseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
