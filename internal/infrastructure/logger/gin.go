package logger

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Gin context keys shared with the HTTP layer
const (
	GinRequestIDKey = "request_id"
	GinErrorCodeKey = "api_error_code"
	ginLoggerKey    = "logger"
)

// busyCode is the ledger contention code. Callers retry those, so they are
// not worth a warning.
const busyCode = "RESOURCE_BUSY"

// GinMiddleware writes one access line per request. The request scoped logger
// carries request id, actor and route, and is placed on both the gin context
// and the request context so stock services log with the same fields.
func GinMiddleware(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		fields := []zap.Field{zap.String("method", c.Request.Method), zap.String("route", route)}
		requestID := c.GetString(GinRequestIDKey)
		if requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
			ctx = context.WithValue(ctx, requestIDKey, requestID)
		}
		if actor := Actor(ctx); actor != "" {
			fields = append(fields, zap.String("actor", actor))
		}
		reqLogger := base.With(fields...)
		c.Set(ginLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(WithContext(ctx, reqLogger))

		c.Next()

		status := c.Writer.Status()
		code := c.GetString(GinErrorCodeKey)
		out := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if code != "" {
			out = append(out, zap.String("error_code", code))
		}
		if q := c.Request.URL.RawQuery; q != "" {
			out = append(out, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			out = append(out, zap.Strings("errors", c.Errors.Errors()))
		}
		if ce := reqLogger.Check(accessLevel(status, code), "stock api request"); ce != nil {
			ce.Write(out...)
		}
	}
}

func accessLevel(status int, code string) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case code == busyCode:
		return zapcore.InfoLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

// Recovery turns a handler panic into a 500 with the API error envelope
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			requestID := c.GetString(GinRequestIDKey)
			WithTrace(c.Request.Context(), base).Error("Panic recovered",
				zap.String("request_id", requestID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stacktrace"),
			)
			c.Set(GinErrorCodeKey, "INTERNAL_ERROR")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":       "INTERNAL_ERROR",
					"message":    "internal server error",
					"request_id": requestID,
				},
			})
		}()
		c.Next()
	}
}

// FromGin returns the request logger set by GinMiddleware
func FromGin(c *gin.Context) *zap.Logger {
	if l, ok := c.Get(ginLoggerKey); ok {
		if zl, ok := l.(*zap.Logger); ok {
			return zl
		}
	}
	return zap.NewNop()
}
