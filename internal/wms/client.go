// Package wms queries feature attributes from the upstream Web Map Service.
//
// The dashboard overlays two raster WMS layers; hovering or clicking the map
// asks the WMS "what feature sits at this coordinate" via GetFeatureInfo with
// a JSON info format. The probe is a small pixel box centered on the pointer
// in the fixed projected CRS (EPSG:3857).
package wms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/openwris/hydromap/internal/config"
	"github.com/openwris/hydromap/internal/logger"
	"github.com/openwris/hydromap/internal/service"
)

const srs = "EPSG:3857"

// Client issues GetFeatureInfo and GetMap requests against one WMS endpoint.
type Client struct {
	baseURL  string
	layers   map[service.LayerKind]config.WMSLayer
	bufferPx int
	http     *http.Client
	log      *logger.Logger
}

// New creates a WMS client from the service configuration.
func New(cfg config.Config, log *logger.Logger) *Client {
	layers := make(map[service.LayerKind]config.WMSLayer, len(cfg.WMS.Layers))
	for kind, layer := range cfg.WMS.Layers {
		layers[service.LayerKind(kind)] = layer
	}
	buffer := cfg.WMS.FeatureInfo.BufferPx
	if buffer <= 0 {
		buffer = 5
	}
	return &Client{
		baseURL:  cfg.WMS.BaseURL,
		layers:   layers,
		bufferPx: buffer,
		http:     &http.Client{Timeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second},
		log:      log,
	}
}

// FeatureInfo resolves the first feature at coord on the given layer, or
// ok=false when nothing is there. A transport or decode failure also yields
// ok=false, with the error returned so click handlers can log it; hover
// handlers ignore it. coord is WGS84 lon/lat; resolution is the current map
// resolution in meters per pixel.
func (c *Client) FeatureInfo(ctx context.Context, kind service.LayerKind, coord orb.Point, resolution float64) (service.FeatureProperties, bool, error) {
	layer, ok := c.layers[kind]
	if !ok {
		return nil, false, fmt.Errorf("no WMS layer configured for %q", kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.featureInfoURL(layer.Name, coord, resolution), nil)
	if err != nil {
		return nil, false, fmt.Errorf("build feature info request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("feature info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("feature info status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read feature info response: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, false, fmt.Errorf("decode feature info response: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, false, nil
	}
	return service.FeatureProperties(fc.Features[0].Properties), true, nil
}

// featureInfoURL builds a WMS 1.1.1 GetFeatureInfo URL: a square pixel box
// centered on the probed point, sized by the map resolution, with the query
// pixel in the middle.
func (c *Client) featureInfoURL(layerName string, coord orb.Point, resolution float64) string {
	merc := project.WGS84.ToMercator(coord)
	half := float64(c.bufferPx) * resolution
	size := c.bufferPx*2 + 1

	q := url.Values{}
	q.Set("SERVICE", "WMS")
	q.Set("VERSION", "1.1.1")
	q.Set("REQUEST", "GetFeatureInfo")
	q.Set("LAYERS", layerName)
	q.Set("QUERY_LAYERS", layerName)
	q.Set("STYLES", "")
	q.Set("SRS", srs)
	q.Set("BBOX", fmt.Sprintf("%f,%f,%f,%f", merc[0]-half, merc[1]-half, merc[0]+half, merc[1]+half))
	q.Set("WIDTH", fmt.Sprintf("%d", size))
	q.Set("HEIGHT", fmt.Sprintf("%d", size))
	q.Set("X", fmt.Sprintf("%d", c.bufferPx))
	q.Set("Y", fmt.Sprintf("%d", c.bufferPx))
	q.Set("INFO_FORMAT", "application/json")
	q.Set("FEATURE_COUNT", "1")
	return c.baseURL + "?" + q.Encode()
}

// MapURL builds a WMS GetMap URL for one overlay layer covering bbox
// (EPSG:3857 "minx,miny,maxx,maxy"). The server proxies these so the browser
// talks to a single origin.
func (c *Client) MapURL(kind service.LayerKind, bbox string, width, height int) (string, error) {
	layer, ok := c.layers[kind]
	if !ok {
		return "", fmt.Errorf("no WMS layer configured for %q", kind)
	}

	q := url.Values{}
	q.Set("SERVICE", "WMS")
	q.Set("VERSION", "1.1.1")
	q.Set("REQUEST", "GetMap")
	q.Set("LAYERS", layer.Name)
	q.Set("STYLES", "")
	q.Set("SRS", srs)
	q.Set("BBOX", bbox)
	q.Set("WIDTH", fmt.Sprintf("%d", width))
	q.Set("HEIGHT", fmt.Sprintf("%d", height))
	q.Set("FORMAT", "image/png")
	q.Set("TRANSPARENT", "true")
	return c.baseURL + "?" + q.Encode(), nil
}

// Proxy streams a GetMap tile for kind through to w, adding permissive CORS
// headers. Failures answer 502; the map just shows a missing overlay tile.
func (c *Client) Proxy(ctx context.Context, w http.ResponseWriter, kind service.LayerKind, bbox string, width, height int) {
	u, err := c.MapURL(kind, bbox, width, height)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		http.Error(w, "bad upstream request", http.StatusInternalServerError)
		return
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnw("wms getmap proxy failed", "layer", kind, "err", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
