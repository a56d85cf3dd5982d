package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"

	"github.com/openwris/hydromap/internal/logger"
)

// FeatureSource resolves the feature, if any, at a map coordinate on a layer.
// ok=false covers both "no feature there" and a failed request; the error is
// non-nil only in the failure case so click paths can log it.
type FeatureSource interface {
	FeatureInfo(ctx context.Context, kind LayerKind, coord orb.Point, resolution float64) (FeatureProperties, bool, error)
}

// SeriesSource fetches the time series for a selected feature. Both methods
// return an empty slice on any failure; errors are logged inside the source.
type SeriesSource interface {
	ReservoirSeries(ctx context.Context, uniqueID string) []ReservoirPoint
	GroundwaterSeries(ctx context.Context, uniqueID string) []GroundwaterPoint
}

// Popup is the transient hover popup state.
type Popup struct {
	Visible    bool
	Coord      orb.Point
	Properties FeatureProperties
}

// MapController owns the map-facing dashboard state: overlay visibility, the
// active feature-info layer, the hover popup, and the current selection.
// It is the single writer of that state; request handlers call into it from
// their own goroutines, so all state access is guarded by mu.
type MapController struct {
	features FeatureSource
	series   SeriesSource
	bus      *EventBus
	log      *logger.Logger

	// hoverSeq orders in-flight hover requests. Only the response whose
	// sequence number is still the latest issued gets applied, so a stale
	// response for a coordinate the pointer already left never flickers
	// the popup.
	hoverSeq atomic.Uint64

	mu        sync.Mutex
	visible   map[LayerKind]bool
	active    LayerKind
	popup     Popup
	selection *Selection
	panel     PanelState
	panelLast PanelState
	chartMode string
}

// NewMapController creates a controller with reservoir active and visible,
// matching the dashboard's initial view.
func NewMapController(features FeatureSource, series SeriesSource, bus *EventBus, log *logger.Logger) *MapController {
	return &MapController{
		features: features,
		series:   series,
		bus:      bus,
		log:      log,
		visible: map[LayerKind]bool{
			LayerReservoir:   true,
			LayerGroundwater: false,
		},
		active:    LayerReservoir,
		panel:     PanelClosed,
		panelLast: PanelClosed,
		chartMode: DefaultChartMode,
	}
}

// DefaultChartMode is the reservoir display mode a fresh selection starts in.
const DefaultChartMode = "both"

// SetChartMode records which reservoir metrics the panel chart plots
// ("level", "storage" or "both").
func (c *MapController) SetChartMode(mode string) {
	switch mode {
	case "level", "storage", "both":
	default:
		mode = DefaultChartMode
	}
	c.mu.Lock()
	c.chartMode = mode
	c.mu.Unlock()
	c.bus.Publish(Event{Topic: "range"})
}

// ChartMode returns the current reservoir display mode.
func (c *MapController) ChartMode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chartMode
}

// SetVisibility toggles one layer's raster visibility without affecting the
// other layer or the active selection.
func (c *MapController) SetVisibility(kind LayerKind, visible bool) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown layer %q", kind)
	}
	c.mu.Lock()
	c.visible[kind] = visible
	c.mu.Unlock()
	c.bus.Publish(Event{Topic: "layers", Layer: kind})
	return nil
}

// SetActive changes which layer answers feature-info queries. Selecting a
// layer for info implicitly shows it; this is a deliberate rule, not a side
// effect of sharing a toggle handler.
func (c *MapController) SetActive(kind LayerKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown layer %q", kind)
	}
	c.mu.Lock()
	c.active = kind
	c.visible[kind] = true
	c.panel, c.panelLast = ReducePanel(c.panel, c.panelLast, PanelEvent{Type: EventActiveChanged, Layer: kind})
	c.mu.Unlock()
	c.bus.Publish(Event{Topic: "layers", Layer: kind})
	return nil
}

// Visibility returns the current visibility of a layer.
func (c *MapController) Visibility(kind LayerKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible[kind]
}

// Active returns the layer currently answering feature-info queries.
func (c *MapController) Active() LayerKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Hover probes the active layer at coord and updates the popup. It returns
// the popup state and whether this response was applied; a response that was
// superseded by a newer hover is discarded and applied=false.
//
// Any failure degrades silently to "no popup": last-write-wins, no retries.
func (c *MapController) Hover(ctx context.Context, coord orb.Point, resolution float64) (Popup, bool) {
	seq := c.hoverSeq.Add(1)

	c.mu.Lock()
	kind := c.active
	c.mu.Unlock()

	props, ok, err := c.features.FeatureInfo(ctx, kind, coord, resolution)
	if err != nil {
		c.log.Debugw("hover feature info failed", "layer", kind, "err", err)
		ok = false
	}

	c.mu.Lock()
	if seq != c.hoverSeq.Load() {
		// A newer hover has been issued; this response is stale.
		popup := c.popup
		c.mu.Unlock()
		return popup, false
	}
	if ok {
		c.popup = Popup{Visible: true, Coord: coord, Properties: props}
	} else {
		c.popup = Popup{}
	}
	popup := c.popup
	c.mu.Unlock()

	c.bus.Publish(Event{Topic: "popup", Layer: kind})
	return popup, true
}

// PopupState returns the current popup state.
func (c *MapController) PopupState() Popup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.popup
}

// Select probes the active layer at coord and, on a hit, replaces the current
// selection: feature properties first, then the matching time series
// (fetched only after the feature resolves), then a date range seeded from
// the series' first and last points. The panel opens in the matching mode.
//
// On error the prior selection is left untouched and no series fetch occurs.
func (c *MapController) Select(ctx context.Context, coord orb.Point, resolution float64) (*Selection, error) {
	c.mu.Lock()
	kind := c.active
	c.mu.Unlock()

	props, ok, err := c.features.FeatureInfo(ctx, kind, coord, resolution)
	if err != nil {
		c.log.Errorw("click feature info failed", "layer", kind, "err", err)
		return nil, fmt.Errorf("feature info: %w", err)
	}
	if !ok {
		return nil, nil
	}

	sel := &Selection{Kind: kind, Properties: props, Rev: time.Now().UnixNano()}
	id := uniqueID(props)
	switch kind {
	case LayerReservoir:
		sel.Reservoir = c.series.ReservoirSeries(ctx, id)
		sel.Range = SeedReservoirRange(sel.Reservoir)
	case LayerGroundwater:
		sel.Groundwater = c.series.GroundwaterSeries(ctx, id)
		sel.Range = SeedGroundwaterRange(sel.Groundwater)
	}

	c.mu.Lock()
	c.selection = sel
	c.chartMode = DefaultChartMode
	c.panel, c.panelLast = ReducePanel(c.panel, c.panelLast, PanelEvent{Type: EventFeatureSelected, Layer: kind})
	c.mu.Unlock()

	c.bus.Publish(Event{Topic: "selection", Layer: kind})
	return sel, nil
}

// Selection returns the current selection, or nil when nothing is selected.
func (c *MapController) Selection() *Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// SetRange updates the selection's date window. The stored series is not
// touched; filtering happens at render time.
func (c *MapController) SetRange(r DateRange) {
	c.mu.Lock()
	if c.selection != nil {
		c.selection.Range = r
	}
	c.mu.Unlock()
	c.bus.Publish(Event{Topic: "range"})
}

// TogglePanel flips the side panel open/closed without changing its mode.
func (c *MapController) TogglePanel() PanelState {
	c.mu.Lock()
	c.panel, c.panelLast = ReducePanel(c.panel, c.panelLast, PanelEvent{Type: EventToggle})
	state := c.panel
	c.mu.Unlock()
	c.bus.Publish(Event{Topic: "panel"})
	return state
}

// ClosePanel closes the side panel and discards the current selection, so a
// reopened panel starts from a fresh feature pick.
func (c *MapController) ClosePanel() {
	c.mu.Lock()
	c.panel, c.panelLast = ReducePanel(c.panel, c.panelLast, PanelEvent{Type: EventClose})
	c.selection = nil
	c.mu.Unlock()
	c.bus.Publish(Event{Topic: "panel"})
}

// Panel returns the current panel state.
func (c *MapController) Panel() PanelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panel
}

// uniqueID pulls the station identifier out of a feature's property bag.
// Both WMS layers expose unique_id; older reservoir tables used uid.
func uniqueID(props FeatureProperties) string {
	for _, key := range []string{"unique_id", "uid"} {
		if v, ok := props[key]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}
