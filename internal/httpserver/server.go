package httpserver

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vigilproject/vigil/internal/model"
)

// AlertReader is the narrow store contract required by the HTTP API.
type AlertReader interface {
	RecentAlerts(limit int) ([]model.Alert, error)
	CountsByKind() (map[string]int64, error)
	TotalAlertCount() (int64, error)
}

// OffsetReader returns the current per-source offsets, typically by
// re-reading the persisted offsets file so no state is shared with the
// collector's control flow.
type OffsetReader func() (map[string]uint64, error)

// Server provides the HTTP API over alerts, offsets, and metrics.
type Server struct {
	addr      string
	alerts    AlertReader
	offsets   OffsetReader
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates an API server. alerts and offsets may each be nil when
// the hosting binary has no such surface; the routes are then omitted.
func NewServer(addr string, alerts AlertReader, offsets OffsetReader) *Server {
	if addr == "" {
		addr = "127.0.0.1:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		alerts:  alerts,
		offsets: offsets,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// routes builds the gin router with only the surfaces this binary has.
func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.alerts != nil {
		r.GET("/api/alerts", s.handleAlerts)
		r.GET("/api/alerts/summary", s.handleAlertSummary)
	}
	if s.offsets != nil {
		r.GET("/api/offsets", s.handleOffsets)
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	r := s.routes()

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if s.alerts != nil {
		count, err := s.alerts.TotalAlertCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
			return
		}
		resp["alert_count"] = count
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAlerts(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	alerts, err := s.alerts.RecentAlerts(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (s *Server) handleAlertSummary(c *gin.Context) {
	counts, err := s.alerts.CountsByKind()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

func (s *Server) handleOffsets(c *gin.Context) {
	offsets, err := s.offsets()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"offsets": offsets})
}
