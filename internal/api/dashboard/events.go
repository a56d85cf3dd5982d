package dashboard

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/openwris/hydromap/internal/humastar"
)

// Events streams dashboard state changes to the page. Whatever mutates the
// controller — REST calls included — ends up re-rendered here, so the UI
// never drifts from server state.
func (h *MapHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)

		// Seed the page with current state, so a fresh or reconnecting
		// client sees the live layer flags before any change happens.
		h.patchLayerControls(sse)
		sse.Patch(h.Render("popup", h.buildPopup(h.controller.PopupState())), "#popup")
		h.patchPanel(sse)

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				switch ev.Topic {
				case "layers":
					h.patchLayerControls(sse)
				case "popup":
					sse.Patch(h.Render("popup", h.buildPopup(h.controller.PopupState())), "#popup")
				case "selection", "panel", "range":
					h.patchPanel(sse)
				}
			}
		}
	}), nil
}
