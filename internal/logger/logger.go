// Package logger builds the zap logger and the echo request-logging
// middleware.
package logger

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	RequestIDHeader = echo.HeaderXRequestID
	contextKey      = "logger"
)

// New returns a JSON logger in production and a colored console logger
// otherwise. An unknown level falls back to info.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" || env == "prod" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level.SetLevel(lvl)
	return cfg.Build()
}

// Middleware stores a request-scoped logger in the echo context and writes
// one access-log line per request.
func Middleware(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Response().Header().Get(RequestIDHeader)
			if requestID == "" {
				requestID = c.Request().Header.Get(RequestIDHeader)
			}
			l := base.With(zap.String("request_id", requestID))
			c.Set(contextKey, l)

			err := next(c)
			if err != nil {
				// let echo's error handler set the final status before logging
				c.Error(err)
			}

			fields := []zapcore.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			switch {
			case err != nil:
				l.Error("HTTP request failed", append(fields, zap.Error(err))...)
			case c.Response().Status >= 500:
				l.Error("HTTP request completed", fields...)
			default:
				l.Info("HTTP request completed", fields...)
			}
			return nil
		}
	}
}

// FromContext returns the request-scoped logger, or fallback when the
// middleware did not run.
func FromContext(c echo.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := c.Get(contextKey).(*zap.Logger); ok {
		return l
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}
