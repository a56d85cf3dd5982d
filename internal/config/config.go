// Package config loads the hydromap service configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WMSLayer describes one WMS overlay layer.
type WMSLayer struct {
	Name           string `yaml:"name"`            // qualified WMS layer name
	Title          string `yaml:"title"`           // display title
	DefaultVisible bool   `yaml:"default_visible"` // visible on first load
}

// Config holds all external endpoints and layer definitions.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	WMS struct {
		BaseURL     string              `yaml:"base_url"`
		Layers      map[string]WMSLayer `yaml:"layers"` // keyed by layer kind
		FeatureInfo struct {
			BufferPx int `yaml:"buffer_px"` // half-size of the probe box in pixels
		} `yaml:"feature_info"`
	} `yaml:"wms"`

	API struct {
		ReservoirSeriesURL   string `yaml:"reservoir_series_url"`
		GroundwaterSeriesURL string `yaml:"groundwater_series_url"`
		TimeoutSeconds       int    `yaml:"timeout_seconds"`
	} `yaml:"api"`

	Tiles struct {
		BaseURL string `yaml:"base_url"` // raster base map tile endpoint
	} `yaml:"tiles"`
}

// Default returns the built-in configuration used when no config file exists.
func Default() Config {
	var cfg Config
	cfg.WMS.BaseURL = "https://arc.indiawris.gov.in/server/services/Admin/wms"
	cfg.WMS.Layers = map[string]WMSLayer{
		"reservoir": {
			Name:           "hydromap:reservoir_live_status",
			Title:          "Reservoirs",
			DefaultVisible: true,
		},
		"groundwater": {
			Name:           "hydromap:gw_monitoring_sites",
			Title:          "Groundwater sites",
			DefaultVisible: false,
		},
	}
	cfg.WMS.FeatureInfo.BufferPx = 5
	cfg.API.ReservoirSeriesURL = "https://indiawris.gov.in/reservoirRawData"
	cfg.API.GroundwaterSeriesURL = "https://indiawris.gov.in/gwDataRaw"
	cfg.API.TimeoutSeconds = 15
	cfg.Tiles.BaseURL = "https://tile.openstreetmap.org"
	return cfg
}

// Load reads the YAML config at path, falling back to Default when the file
// does not exist. A present-but-invalid file is an error, not a fallback.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
