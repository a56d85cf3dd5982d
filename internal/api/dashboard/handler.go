// Package dashboard contains the Datastar SSE handlers driving the map UI:
// hover popups, click selection, layer toggles, date-range filtering, and
// the side panel.
package dashboard

import (
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/openwris/hydromap/internal/chart"
	"github.com/openwris/hydromap/internal/config"
	"github.com/openwris/hydromap/internal/humastar"
	"github.com/openwris/hydromap/internal/logger"
	"github.com/openwris/hydromap/internal/service"
	"github.com/openwris/hydromap/internal/templates"
)

// MapHandler serves the dashboard's SSE endpoints.
type MapHandler struct {
	humastar.Handler
	controller *service.MapController
	bus        *service.EventBus
	cfg        config.Config
	log        *logger.Logger
}

// NewMapHandler creates the dashboard handler.
func NewMapHandler(controller *service.MapController, bus *service.EventBus, cfg config.Config, renderer *templates.Renderer, log *logger.Logger) *MapHandler {
	return &MapHandler{
		Handler:    humastar.Handler{Renderer: renderer},
		controller: controller,
		bus:        bus,
		cfg:        cfg,
		log:        log,
	}
}

// RegisterRoutes registers the SSE routes.
func (h *MapHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/dashboard/hover", h.Hover, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/select", h.Select, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/layers/visibility", h.Visibility, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/layers/active", h.Activate, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/range", h.Range, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/chart/mode", h.ChartMode, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/panel/toggle", h.TogglePanel, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/panel/close", h.ClosePanel, huma.OperationTags("dashboard"))
	huma.Get(api, "/api/v1/dashboard/events", h.Events, huma.OperationTags("dashboard"))
}

// propRow is one label/value line of the feature property list.
type propRow struct {
	Label string
	Value string
}

// panelData feeds the side panel fragment. From/To are formatted by the
// template's day helper; zero times render as empty inputs.
type panelData struct {
	State     service.PanelState
	Kind      service.LayerKind
	Reservoir bool
	Title     string
	Props     []propRow
	From      time.Time
	To        time.Time
	Mode      string
	HasData   bool
	ChartURL  string
}

// reservoirProps and groundwaterProps fix the order and labels of the
// property lines shown per layer. Missing keys display as "N/A".
var reservoirProps = []propRow{
	{Label: "Station", Value: "station_name"},
	{Label: "State", Value: "state_name"},
	{Label: "District", Value: "district_name"},
	{Label: "Agency", Value: "agency_name"},
	{Label: "Station ID", Value: "unique_id"},
}

var groundwaterProps = []propRow{
	{Label: "Site", Value: "site_name"},
	{Label: "Type", Value: "site_type"},
	{Label: "State", Value: "state_name"},
	{Label: "District", Value: "district_name"},
	{Label: "Block", Value: "block_name"},
	{Label: "Well depth (m)", Value: "depth"},
	{Label: "Site ID", Value: "unique_id"},
}

// buildPanel assembles the panel fragment data for the current state. The
// display mode only applies to the reservoir panel.
func (h *MapHandler) buildPanel() panelData {
	state := h.controller.Panel()
	mode := chart.Mode(h.controller.ChartMode())
	data := panelData{State: state, Mode: string(mode)}
	if !state.Open() {
		return data
	}

	sel := h.controller.Selection()
	if sel == nil {
		return data
	}

	data.Kind = sel.Kind
	data.Reservoir = sel.Kind == service.LayerReservoir
	data.Title = stationTitle(sel)
	data.From = sel.Range.From
	data.To = sel.Range.To

	keys := groundwaterProps
	if data.Reservoir {
		keys = reservoirProps
	}
	for _, row := range keys {
		data.Props = append(data.Props, propRow{Label: row.Label, Value: sel.Properties.Display(row.Value)})
	}

	switch sel.Kind {
	case service.LayerGroundwater:
		data.HasData = len(service.FilterGroundwater(sel.Groundwater, sel.Range)) > 0
	default:
		data.HasData = len(service.FilterReservoir(sel.Reservoir, sel.Range)) > 0
	}

	// The rev query forces a fresh chart document per selection, so pan and
	// zoom state never survives a data replacement.
	data.ChartURL = fmt.Sprintf("/dashboard/chart/%s?mode=%s&rev=%d", sel.Kind, mode, sel.Rev)
	return data
}

// patchPanel re-renders the side panel into the page.
func (h *MapHandler) patchPanel(sse humastar.SSE) {
	sse.Patch(h.Render("panel", h.buildPanel()), "#side-panel")
}

// stationTitle picks a human title for the selected feature.
func stationTitle(sel *service.Selection) string {
	keys := []string{"site_name", "station_name", "name", "unique_id"}
	for _, key := range keys {
		if v := sel.Properties.Display(key); v != "N/A" {
			return v
		}
	}
	return "Selected site"
}

// parseDay parses a YYYY-MM-DD form value; ok=false for empty or malformed
// input, which callers treat as an unbounded side.
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

// modeFromSignals reads the chart display-mode signal, defaulting to both.
func modeFromSignals(signals humastar.Signals) chart.Mode {
	m := chart.Mode(signals.String("chartmode"))
	if !m.Valid() {
		return chart.ModeBoth
	}
	return m
}
