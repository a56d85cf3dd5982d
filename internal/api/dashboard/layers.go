package dashboard

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/openwris/hydromap/internal/humastar"
	"github.com/openwris/hydromap/internal/service"
)

// layerControlData feeds the layer-controls fragment.
type layerControlData struct {
	Kind    service.LayerKind
	Title   string
	Visible bool
	Active  bool
}

// Visibility toggles one overlay's visibility. Visibility is independent of
// which layer is active: checking groundwater on while reservoir is the
// active layer leaves reservoir active.
func (h *MapHandler) Visibility(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	kind := service.LayerKind(signals.String("layer"))
	visible := signals.Bool("visible")

	return h.Stream(func(sse humastar.SSE) {
		if err := h.controller.SetVisibility(kind, visible); err != nil {
			sse.Error(err.Error())
			return
		}
		h.patchLayerControls(sse)
	}), nil
}

// Activate switches which layer answers feature-info queries; the selected
// layer also becomes visible.
func (h *MapHandler) Activate(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	kind := service.LayerKind(signals.String("layer"))

	return h.Stream(func(sse humastar.SSE) {
		if err := h.controller.SetActive(kind); err != nil {
			sse.Error(err.Error())
			return
		}
		h.patchLayerControls(sse)
	}), nil
}

func (h *MapHandler) patchLayerControls(sse humastar.SSE) {
	sse.Patch(h.renderLayerControls(), "#layer-controls")
}

func (h *MapHandler) renderLayerControls() string {
	var controls []layerControlData
	for _, kind := range []service.LayerKind{service.LayerReservoir, service.LayerGroundwater} {
		controls = append(controls, layerControlData{
			Kind:    kind,
			Title:   h.cfg.WMS.Layers[string(kind)].Title,
			Visible: h.controller.Visibility(kind),
			Active:  h.controller.Active() == kind,
		})
	}
	return h.Render("layer-controls", controls)
}
