package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/August26/proxytest-go/internal/analytics"
	"github.com/August26/proxytest-go/internal/store"
)

// History is the read side of the run archive.
type History interface {
	History(limit int) ([]store.VerdictRow, error)
}

// Server exposes the live state of a run over HTTP.
type Server struct {
	echo    *echo.Echo
	agg     *analytics.Aggregator
	history History
	log     *slog.Logger
}

// NewServer builds the router. history may be nil when no archive is open.
func NewServer(agg *analytics.Aggregator, history History, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("api request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))

	s := &Server{echo: e, agg: agg, history: history, log: log}

	e.GET("/healthz", s.healthz)
	api := e.Group("/api")
	api.GET("/status", s.status)
	api.GET("/verdict", s.verdict)
	api.GET("/history", s.listHistory)

	return s
}

// Handler returns the underlying router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Start binds addr and serves in a background goroutine. Bind errors are
// returned to the caller.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", addr, err)
	}
	s.echo.Listener = ln
	s.log.Info("api: listening", "addr", ln.Addr().String())
	go func() {
		if err := s.echo.Start(addr); !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api: server error", "err", err)
		}
	}()
	return nil
}

// Addr is the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.echo.Listener == nil {
		return nil
	}
	return s.echo.Listener.Addr()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// GET /healthz
func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/status
func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, s.agg.Snapshot())
}

// GET /api/verdict
func (s *Server) verdict(c echo.Context) error {
	v, ok := s.agg.Last()
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "no pass has finished yet",
		})
	}
	return c.JSON(http.StatusOK, v)
}

// GET /api/history?limit=N
func (s *Server) listHistory(c echo.Context) error {
	if s.history == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "archive is not enabled",
		})
	}
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
		}
		limit = n
	}
	rows, err := s.history.History(limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, rows)
}
