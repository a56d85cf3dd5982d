package dashboard

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/openwris/hydromap/internal/humastar"
	"github.com/openwris/hydromap/internal/service"
)

// popupData feeds the hover popup fragment.
type popupData struct {
	Visible bool
	Lon     float64
	Lat     float64
	Title   string
	Props   []propRow
}

// Hover probes the active layer at the pointer coordinate and patches the
// popup. The controller discards responses that a newer hover superseded;
// for those this handler patches nothing, so the popup never flickers back
// to a stale coordinate.
func (h *MapHandler) Hover(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	coord := orb.Point{signals.Float("lon"), signals.Float("lat")}
	resolution := signals.Float("resolution")

	return h.Stream(func(sse humastar.SSE) {
		popup, applied := h.controller.Hover(ctx, coord, resolution)
		if !applied {
			return
		}
		sse.Patch(h.Render("popup", h.buildPopup(popup)), "#popup")
	}), nil
}

func (h *MapHandler) buildPopup(popup service.Popup) popupData {
	data := popupData{
		Visible: popup.Visible,
		Lon:     popup.Coord[0],
		Lat:     popup.Coord[1],
	}
	if !popup.Visible {
		return data
	}

	sel := &service.Selection{Kind: h.controller.Active(), Properties: popup.Properties}
	data.Title = stationTitle(sel)

	// A popup shows a short summary, not the full property list.
	keys := []propRow{
		{Label: "State", Value: "state_name"},
		{Label: "District", Value: "district_name"},
	}
	for _, row := range keys {
		data.Props = append(data.Props, propRow{Label: row.Label, Value: popup.Properties.Display(row.Value)})
	}
	return data
}
