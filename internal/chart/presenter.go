// Package chart renders time-series charts for the dashboard panels using
// go-echarts. Each panel owns its chart document: the browser embeds it in a
// per-panel frame, so resetting or zooming one panel never touches the other.
package chart

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/openwris/hydromap/internal/service"
)

// Mode selects which reservoir metrics are plotted.
type Mode string

const (
	ModeLevel   Mode = "level"
	ModeStorage Mode = "storage"
	ModeBoth    Mode = "both"
)

// Valid reports whether m is a known display mode.
func (m Mode) Valid() bool {
	return m == ModeLevel || m == ModeStorage || m == ModeBoth
}

// Fixed series identities. Stable across renders so a series keeps its color
// and label no matter which display mode is active.
const (
	levelLabel   = "Reservoir level (m)"
	storageLabel = "Live storage (BCM)"
	depthLabel   = "Water level (m bgl)"

	levelColor   = "#1f77b4"
	storageColor = "#2ca02c"
	depthColor   = "#d62728"
)

// Reservoir builds a line chart for a filtered reservoir series. The chart
// pans and zooms on the time axis only, and a toolbox restore gives the
// explicit reset-to-default view. Returns an error when the series is empty;
// the caller shows the "no data in range" state instead of an empty chart.
func Reservoir(points []service.ReservoirPoint, mode Mode, title string) (*charts.Line, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no data in range")
	}
	if !mode.Valid() {
		mode = ModeBoth
	}

	dates := make([]string, 0, len(points))
	levels := make([]opts.LineData, 0, len(points))
	storages := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		dates = append(dates, p.Date.UTC().Format("2006-01-02"))
		levels = append(levels, gapValue(p.LevelM))
		storages = append(storages, gapValue(p.StorageBCM))
	}

	var colors []string
	if mode == ModeLevel || mode == ModeBoth {
		colors = append(colors, levelColor)
	}
	if mode == ModeStorage || mode == ModeBoth {
		colors = append(colors, storageColor)
	}

	line := newTimeLine(title, colors)
	line.SetXAxis(dates)
	if mode == ModeLevel || mode == ModeBoth {
		line.AddSeries(levelLabel, levels)
	}
	if mode == ModeStorage || mode == ModeBoth {
		line.AddSeries(storageLabel, storages)
	}
	return line, nil
}

// Groundwater builds a line chart for a filtered groundwater depth series.
func Groundwater(points []service.GroundwaterPoint, title string) (*charts.Line, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no data in range")
	}

	dates := make([]string, 0, len(points))
	depths := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		dates = append(dates, p.Date.UTC().Format("2006-01-02"))
		depths = append(depths, gapValue(p.DepthM))
	}

	line := newTimeLine(title, []string{depthColor})
	line.SetXAxis(dates)
	line.AddSeries(depthLabel, depths)
	return line, nil
}

// Write renders the chart as a standalone HTML document.
func Write(line *charts.Line, w io.Writer) error {
	return line.Render(w)
}

// newTimeLine applies the shared chart options: horizontal-only wheel/pinch
// zoom plus a slider, and a restore action that resets to the default view.
func newTimeLine(title string, colors []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "100%",
			Height:    "360px",
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithColorsOpts(opts.Colors(colors)),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "inside", XAxisIndex: []int{0}},
			opts.DataZoom{Type: "slider", XAxisIndex: []int{0}},
		),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: opts.Bool(true),
			Feature: &opts.ToolBoxFeature{
				Restore: &opts.ToolBoxFeatureRestore{
					Show:  opts.Bool(true),
					Title: "Reset view",
				},
			},
		}),
	)
	return line
}

// gapValue maps NaN readings to the echarts gap marker so a bad parse shows
// as a hole in the line instead of dropping the point or breaking the chart.
func gapValue(v float64) opts.LineData {
	if math.IsNaN(v) {
		return opts.LineData{Value: "-"}
	}
	return opts.LineData{Value: v}
}
