package server

import (
	"time"

	"github.com/existflow/narodplus/internal/gateway"
	"github.com/existflow/narodplus/internal/logger"
	"github.com/labstack/echo/v4"
)

// requestLogger logs every request with its status, duration and whether
// the gateway answered from cache
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		logger.Debug("HTTP Request",
			logger.F("method", req.Method),
			logger.F("uri", req.RequestURI),
			logger.F("remote", req.RemoteAddr))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		res := c.Response()
		fields := []logger.Field{
			logger.F("method", req.Method),
			logger.F("uri", req.RequestURI),
			logger.F("status", res.Status),
			logger.F("size", res.Size),
			logger.F("duration", time.Since(start).String()),
		}
		if cache := res.Header().Get(gateway.HeaderCache); cache != "" {
			fields = append(fields, logger.F("cache", cache))
		}
		logger.Info("HTTP Response", fields...)

		return nil
	}
}
