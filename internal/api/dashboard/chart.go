package dashboard

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/openwris/hydromap/internal/chart"
	"github.com/openwris/hydromap/internal/service"
)

// ServeChart renders the chart document for one panel at
// /dashboard/chart/{kind}. Each panel embeds its own frame pointing here, so
// zoom, pan and restore act on that panel alone. The rev query parameter in
// the frame URL changes with every selection, which reloads the document and
// drops any zoom state from the previous feature.
func (h *MapHandler) ServeChart(w http.ResponseWriter, r *http.Request) {
	kind := service.LayerKind(strings.TrimPrefix(r.URL.Path, "/dashboard/chart/"))
	if !kind.Valid() {
		http.NotFound(w, r)
		return
	}

	sel := h.controller.Selection()
	if sel == nil || sel.Kind != kind {
		h.writeNoData(w, "No feature selected")
		return
	}

	title := stationTitle(sel)
	var err error
	switch kind {
	case service.LayerGroundwater:
		points := service.FilterGroundwater(sel.Groundwater, sel.Range)
		if len(points) == 0 {
			h.writeNoData(w, "No data in range")
			return
		}
		line, buildErr := chart.Groundwater(points, title)
		if buildErr != nil {
			h.writeNoData(w, "No data in range")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = chart.Write(line, w)
	default:
		points := service.FilterReservoir(sel.Reservoir, sel.Range)
		if len(points) == 0 {
			h.writeNoData(w, "No data in range")
			return
		}
		line, buildErr := chart.Reservoir(points, chart.Mode(h.controller.ChartMode()), title)
		if buildErr != nil {
			h.writeNoData(w, "No data in range")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = chart.Write(line, w)
	}
	if err != nil {
		h.log.Errorw("render chart", "layer", kind, "err", err)
	}
}

// writeNoData answers with the explicit empty state instead of a blank chart.
func (h *MapHandler) writeNoData(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html><html><body><p class="no-data">%s</p></body></html>`, msg)
}
