// Package wris fetches reservoir and groundwater time series from the
// remote water-resources API.
//
// Both endpoints share the same envelope: a POST of {"data":{"unique_id":x}}
// answered by {"status":"success","data":[...]}. Every failure mode —
// transport, non-success envelope, malformed rows — collapses to an empty
// series with a logged diagnostic; callers never see an error and a failed
// fetch is retried only by a new user interaction.
package wris

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/openwris/hydromap/internal/config"
	"github.com/openwris/hydromap/internal/logger"
	"github.com/openwris/hydromap/internal/service"
)

// Client fetches time series from the upstream API.
type Client struct {
	reservoirURL   string
	groundwaterURL string
	http           *http.Client
	log            *logger.Logger
}

// New creates a WRIS client from the service configuration.
func New(cfg config.Config, log *logger.Logger) *Client {
	return &Client{
		reservoirURL:   cfg.API.ReservoirSeriesURL,
		groundwaterURL: cfg.API.GroundwaterSeriesURL,
		http:           &http.Client{Timeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second},
		log:            log,
	}
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type reservoirRow struct {
	AcqDT      string `json:"acq_dt"`
	LevelM     any    `json:"current_reservoir_level_m"`
	StorageBCM any    `json:"current_live_storage_bcm"`
}

type groundwaterRow struct {
	Date     string `json:"date"`
	WLMBGL   any    `json:"wl_mbgl"`
	UniqueID string `json:"unique_id"`
	SiteName string `json:"site_name"`
}

// ReservoirSeries returns the chronological level/storage readings for one
// reservoir. Numeric fields arrive as strings; an unparsable value becomes
// NaN and the point is kept, so the chart can render it as a gap. Source
// ordering is trusted and preserved.
func (c *Client) ReservoirSeries(ctx context.Context, uniqueID string) []service.ReservoirPoint {
	var rows []reservoirRow
	if !c.fetch(ctx, c.reservoirURL, uniqueID, &rows) {
		return []service.ReservoirPoint{}
	}

	points := make([]service.ReservoirPoint, 0, len(rows))
	for _, row := range rows {
		date, ok := parseDate(row.AcqDT)
		if !ok {
			c.log.Debugw("skipping reservoir row with bad date", "acq_dt", row.AcqDT)
			continue
		}
		points = append(points, service.ReservoirPoint{
			Date:       date,
			LevelM:     parseNumber(row.LevelM),
			StorageBCM: parseNumber(row.StorageBCM),
		})
	}
	return points
}

// GroundwaterSeries returns the chronological depth readings for one
// monitoring site. Rows whose raw wl_mbgl is explicitly null are discarded;
// non-null but unparsable readings are kept as NaN.
func (c *Client) GroundwaterSeries(ctx context.Context, uniqueID string) []service.GroundwaterPoint {
	var rows []groundwaterRow
	if !c.fetch(ctx, c.groundwaterURL, uniqueID, &rows) {
		return []service.GroundwaterPoint{}
	}

	points := make([]service.GroundwaterPoint, 0, len(rows))
	for _, row := range rows {
		if row.WLMBGL == nil {
			continue
		}
		date, ok := parseDate(row.Date)
		if !ok {
			c.log.Debugw("skipping groundwater row with bad date", "date", row.Date)
			continue
		}
		points = append(points, service.GroundwaterPoint{
			Date:   date,
			DepthM: parseNumber(row.WLMBGL),
		})
	}
	return points
}

// fetch posts the unique-id envelope and decodes the data array into out.
// Returns false (and logs) on any transport or application failure.
func (c *Client) fetch(ctx context.Context, endpoint, uniqueID string, out any) bool {
	payload, err := json.Marshal(map[string]any{
		"data": map[string]string{"unique_id": uniqueID},
	})
	if err != nil {
		c.log.Errorw("marshal series request", "err", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		c.log.Errorw("build series request", "url", endpoint, "err", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnw("series request failed", "url", endpoint, "unique_id", uniqueID, "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warnw("series request rejected", "url", endpoint, "status", resp.StatusCode)
		return false
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.log.Warnw("decode series envelope", "url", endpoint, "err", err)
		return false
	}
	if env.Status != "success" {
		c.log.Warnw("series request unsuccessful", "url", endpoint, "status", env.Status)
		return false
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		c.log.Warnw("decode series rows", "url", endpoint, "err", err)
		return false
	}
	return true
}

// dateLayouts covers the formats the upstream feeds have been seen using.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumber converts an upstream value to float64. Strings are parsed;
// anything non-numeric becomes NaN rather than an error.
func parseNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
