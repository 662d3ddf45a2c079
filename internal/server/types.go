package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/roikit/internal/crop"
	"github.com/MeKo-Tech/roikit/internal/editor"
	"github.com/MeKo-Tech/roikit/internal/matcher"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	matcher     *matcher.Matcher
	editorCfg   editor.Config
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	Matcher     matcher.Config
	Editor      editor.Config
	RateLimit   RateLimitConfig
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version,omitempty"`
	Time         string `json:"time"`
	Backend      string `json:"backend"`
	BackendError string `json:"backend_error,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// CropResponse is returned by /crop?format=json. Images are base64 PNG.
type CropResponse struct {
	Success  bool       `json:"success"`
	ROI      roi.Record `json:"roi"`
	Crop     crop.Info  `json:"crop"`
	CropRect [4]int     `json:"crop_rect"` // x, y, w, h
	Image    []byte     `json:"image"`
	Mask     []byte     `json:"mask,omitempty"`
}

// MatchResponse is returned by /match.
type MatchResponse struct {
	Success      bool           `json:"success"`
	Result       matcher.Result `json:"result"`
	Pattern      roi.Record     `json:"pattern"`
	Search       roi.Record     `json:"search"`
	ProcessingMs int64          `json:"processing_ms"`
}

// NewServer creates a server. A matcher whose backend is unavailable is kept;
// /health reports it and /match answers 503.
func NewServer(config Config) (*Server, error) {
	if config.MaxUploadMB < 0 || config.TimeoutSec < 0 {
		return nil, fmt.Errorf("invalid server limits: max upload %d MB, timeout %ds", config.MaxUploadMB, config.TimeoutSec)
	}
	s := &Server{
		matcher:     matcher.New(config.Matcher),
		editorCfg:   config.Editor,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeout:     time.Duration(config.TimeoutSec) * time.Second,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	if err := s.matcher.Available(); err != nil {
		slog.Warn("Matching disabled", "error", err)
	}
	return s, nil
}

// checkOrigin accepts any origin under a "*" CORS policy and otherwise only
// the configured one.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware("/health", s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/crop", s.corsMiddleware("/crop", s.rateLimitMiddleware(s.cropHandler)))
	mux.HandleFunc("/mask", s.corsMiddleware("/mask", s.rateLimitMiddleware(s.maskHandler)))
	mux.HandleFunc("/match", s.corsMiddleware("/match", s.rateLimitMiddleware(s.matchHandler)))
	mux.HandleFunc("/ws/edit", s.corsMiddleware("/ws/edit", s.editWebSocketHandler))
}
