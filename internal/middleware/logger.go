package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/parcelbook/internal/logger"
)

// LoggerKey is the gin context key of the request-scoped logger.
const LoggerKey = "logger"

// quietRoutes are polled constantly and only logged at debug level on success.
var quietRoutes = map[string]bool{
	"/health":       true,
	"/health/ready": true,
	"/metrics":      true,
}

// Logger stores a request-scoped logger in the context and writes one access
// line per request. 5xx responses log at error, 4xx at warn.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := log.WithRequestID(GetRequestID(c))
		c.Set(LoggerKey, reqLog)

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"bytes":       c.Writer.Size(),
			"ip":          c.ClientIP(),
		}
		if route != "" {
			fields["route"] = route
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields["query"] = q
		}
		// Path parameters name the county, parcel or vendor a request is about.
		for _, p := range c.Params {
			fields["param_"+p.Key] = p.Value
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= 500:
			reqLog.Error("Request failed", nil, fields)
		case status >= 400:
			reqLog.Warn("Request rejected", fields)
		case quietRoutes[route]:
			reqLog.Debug("Request completed", fields)
		default:
			reqLog.Info("Request completed", fields)
		}
	}
}

// GetLogger returns the request-scoped logger, or nil outside the middleware chain.
func GetLogger(c *gin.Context) *logger.Logger {
	v, _ := c.Get(LoggerKey)
	l, _ := v.(*logger.Logger)
	return l
}
