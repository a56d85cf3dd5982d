// Package server wires the hydromap HTTP surface: the Huma REST API, the
// Datastar SSE dashboard endpoints, the chart documents, and the map tile
// and WMS overlay proxies.
package server

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/openwris/hydromap/internal/api"
	"github.com/openwris/hydromap/internal/api/dashboard"
	"github.com/openwris/hydromap/internal/config"
	"github.com/openwris/hydromap/internal/logger"
	"github.com/openwris/hydromap/internal/service"
	"github.com/openwris/hydromap/internal/templates"
	"github.com/openwris/hydromap/internal/wms"
	"github.com/openwris/hydromap/internal/wris"
)

// Options holds the server configuration.
type Options struct {
	Host       string
	Port       string
	ConfigFile string
	WebDir     string // path to web/ directory for static files and templates
	LogLevel   string
}

// Server is the hydromap HTTP server.
type Server struct {
	opts       Options
	cfg        config.Config
	mux        *http.ServeMux
	humaAPI    huma.API
	controller *service.MapController
	wmsClient  *wms.Client
	dash       *dashboard.MapHandler
	log        *logger.Logger
}

// New creates a new hydromap server.
func New(opts Options) (*Server, error) {
	log := logger.Get(opts.LogLevel)

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("hydromap API", "1.0.0")
	humaConfig.Info.Description = "Hydrological dashboard API: WMS overlay state, feature selection, and reservoir/groundwater time series."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", opts.Host, opts.Port), Description: "Local server"},
	}
	humaAPI := humago.New(mux, humaConfig)

	bus := service.NewEventBus()
	wmsClient := wms.New(cfg, log)
	wrisClient := wris.New(cfg, log)
	controller := service.NewMapController(wmsClient, wrisClient, bus, log)

	var renderer *templates.Renderer
	if opts.WebDir != "" {
		fragmentsDir := filepath.Join(opts.WebDir, "templates", "fragments")
		if r, err := templates.New(fragmentsDir); err == nil {
			renderer = r
		} else {
			log.Warnw("fragment templates unavailable", "dir", fragmentsDir, "err", err)
		}
	}

	s := &Server{
		opts:       opts,
		cfg:        cfg,
		mux:        mux,
		humaAPI:    humaAPI,
		controller: controller,
		wmsClient:  wmsClient,
		log:        log,
	}

	if renderer != nil {
		s.dash = dashboard.NewMapHandler(controller, bus, cfg, renderer, log)
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Controller exposes the map controller, mainly for tests.
func (s *Server) Controller() *service.MapController {
	return s.controller
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, &api.Services{Controller: s.controller, Config: s.cfg})

	if s.dash != nil {
		s.dash.RegisterRoutes(s.humaAPI)
		s.mux.HandleFunc("/dashboard/chart/", s.dash.ServeChart)
	}

	// Map imagery proxies: base raster tiles and the two WMS overlays.
	s.mux.HandleFunc("/tiles/", s.handleTiles)
	s.mux.HandleFunc("/overlay/", s.handleOverlay)

	// Static files and the viewer page.
	if s.opts.WebDir != "" {
		staticDir := filepath.Join(s.opts.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
		s.mux.HandleFunc("/viewer", s.handleViewer)
	}

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"service":"hydromap","status":"running"}`)
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	templatePath := filepath.Join(s.opts.WebDir, "templates", "viewer.html")
	http.ServeFile(w, r, templatePath)
}

// handleTiles proxies base map raster tiles (/tiles/{z}/{x}/{y}.png) so the
// browser stays on a single origin.
func (s *Server) handleTiles(w http.ResponseWriter, r *http.Request) {
	suffix := strings.TrimPrefix(r.URL.Path, "/tiles/")
	if suffix == "" || strings.Contains(suffix, "..") {
		http.NotFound(w, r)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, s.cfg.Tiles.BaseURL+"/"+suffix, nil)
	if err != nil {
		http.Error(w, "bad tile request", http.StatusBadRequest)
		return
	}
	req.Header.Set("User-Agent", "hydromap/1.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.log.Warnw("tile proxy failed", "tile", suffix, "err", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// handleOverlay proxies WMS GetMap requests for one overlay layer:
// /overlay/{kind}?bbox=minx,miny,maxx,maxy&width=256&height=256
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	kind := service.LayerKind(strings.TrimPrefix(r.URL.Path, "/overlay/"))
	if !kind.Valid() {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	bbox := q.Get("bbox")
	if bbox == "" {
		http.Error(w, "bbox required", http.StatusBadRequest)
		return
	}
	width := intParam(q.Get("width"), 256)
	height := intParam(q.Get("height"), 256)

	s.wmsClient.Proxy(r.Context(), w, kind, bbox, width, height)
}

func intParam(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 || v > 4096 {
		return fallback
	}
	return v
}
