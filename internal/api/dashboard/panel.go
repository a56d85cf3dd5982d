package dashboard

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/openwris/hydromap/internal/humastar"
	"github.com/openwris/hydromap/internal/service"
)

// Select resolves the clicked feature and, on a hit, replaces the selection,
// fetches its series, and opens the panel. A miss changes nothing; an error
// is logged by the controller and also changes nothing.
func (h *MapHandler) Select(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	coord := orb.Point{signals.Float("lon"), signals.Float("lat")}
	resolution := signals.Float("resolution")

	return h.Stream(func(sse humastar.SSE) {
		sel, err := h.controller.Select(ctx, coord, resolution)
		if err != nil || sel == nil {
			// Prior selection state stays untouched.
			return
		}
		h.patchPanel(sse)
	}), nil
}

// Range applies the edited date window to the current selection and
// re-renders the panel; the chart frame URL keeps its revision, and the
// frame re-requests the chart with the new bounds.
func (h *MapHandler) Range(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	var r service.DateRange
	if t, ok := parseDay(signals.String("from")); ok {
		r.From = t
	}
	if t, ok := parseDay(signals.String("to")); ok {
		r.To = t
	}

	return h.Stream(func(sse humastar.SSE) {
		h.controller.SetRange(r)
		h.patchPanel(sse)
	}), nil
}

// ChartMode switches which reservoir metrics the panel chart plots.
func (h *MapHandler) ChartMode(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	mode := modeFromSignals(signals)

	return h.Stream(func(sse humastar.SSE) {
		h.controller.SetChartMode(string(mode))
		h.patchPanel(sse)
	}), nil
}

// TogglePanel flips the panel open/closed without changing its content.
func (h *MapHandler) TogglePanel(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		h.controller.TogglePanel()
		h.patchPanel(sse)
	}), nil
}

// ClosePanel closes the panel and discards the selection.
func (h *MapHandler) ClosePanel(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		h.controller.ClosePanel()
		h.patchPanel(sse)
	}), nil
}
