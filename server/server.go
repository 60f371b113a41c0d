package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/existflow/narodplus/internal/gateway"
	"github.com/existflow/narodplus/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// ControlPrefix is reserved for the gateway's own endpoints; everything else
// is forwarded to the origin.
const ControlPrefix = "/__gateway"

// Server is the HTTP front of the offline cache gateway
type Server struct {
	gw   *gateway.Gateway
	echo *echo.Echo
}

// New creates a server forwarding through gw
func New(gw *gateway.Gateway) *Server {
	s := &Server{gw: gw}
	s.setupEcho()
	return s
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(requestLogger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	// Health check
	e.GET("/health", s.handleHealth)

	// Control endpoints
	control := e.Group(ControlPrefix)
	control.POST("/message", s.handleMessage)
	control.GET("/status", s.handleStatus)

	// Everything else goes to the origin through the gateway
	e.Use(middleware.ProxyWithConfig(middleware.ProxyConfig{
		Skipper:   s.isLocal,
		Balancer:  middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{{URL: s.gw.Origin()}}),
		Transport: s.gw,
	}))

	s.echo = e
}

func (s *Server) isLocal(c echo.Context) bool {
	path := c.Request().URL.Path
	return path == "/health" || path == ControlPrefix || strings.HasPrefix(path, ControlPrefix+"/")
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server. It returns nil after Shutdown.
func (s *Server) Start(addr string) error {
	logger.Info("Gateway front listening", logger.F("addr", addr), logger.F("origin", s.gw.Origin().String()))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessage(c echo.Context) error {
	var msg gateway.Message
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message")
	}
	if err := c.Validate(&msg); err != nil {
		return err
	}

	if err := s.gw.PostMessage(c.Request().Context(), msg); err != nil {
		logger.Error("Gateway message failed", logger.F("type", msg.Type), logger.Err(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return s.handleStatus(c)
}

func (s *Server) handleStatus(c echo.Context) error {
	st, err := s.gw.Status(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, st)
}
