// internal/api/api.go
package api

import (
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/datastore"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/logging"
	"github.com/hush-home/hushd/internal/observability"
)

// Response cache tuning. Today's stats change with every processed event, so
// they only stay cached for a moment; the delivery target list only changes
// with a config edit and can live longer.
const (
	statsCacheKey   = "today_stats"
	statsCacheTTL   = 15 * time.Second
	targetsCacheKey = "delivery_targets"
	targetsCacheTTL = 10 * time.Minute
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	// DisableSaveSettings prevents persisting settings changes to disk.
	// When set, configuration updates stay in memory only. This is
	// primarily used in testing but works as a read-only mode too.
	// Set before the first request is served.
	DisableSaveSettings bool

	settingsMutex  sync.RWMutex
	responseCache  *cache.Cache
	logger         *log.Logger
	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error
	metrics        *observability.Metrics
	startTime      time.Time
	mqttConnected  func() bool
}

// New creates the API controller and registers its routes on the given Echo
// instance under /api/v1. The metrics argument may be nil.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings, m *observability.Metrics, logger *log.Logger) (*Controller, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings are required")
	}
	if ds == nil {
		return nil, fmt.Errorf("datastore is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Controller{
		Echo:          e,
		DS:            ds,
		Settings:      settings,
		responseCache: cache.New(statsCacheTTL, 5*time.Minute),
		logger:        logger,
		metrics:       m,
		startTime:     time.Now(),
	}

	c.initLogger()

	c.Group = e.Group("/api/v1")
	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	c.Group.Use(middleware.BodyLimit("1M"))
	c.Group.Use(c.LoggingMiddleware())
	c.Group.Use(c.MetricsMiddleware())
	c.Group.Use(c.BasicAuthMiddleware())

	c.initRoutes()

	return c, nil
}

// initLogger sets up the structured request logger, falling back to a
// disabled handler when the log file cannot be opened so request handling
// never depends on logging.
func (c *Controller) initLogger() {
	c.apiLevelVar = new(slog.LevelVar)
	if c.Settings.WebServer.Debug {
		c.apiLevelVar.Set(slog.LevelDebug)
	} else {
		c.apiLevelVar.Set(slog.LevelInfo)
	}

	if !c.Settings.WebServer.Log.Enabled {
		c.apiLogger = logging.ForService("api")
		if c.apiLogger == nil {
			c.apiLogger = slog.Default().With("service", "api")
		}
		c.apiLoggerClose = func() error { return nil }
		return
	}

	logPath := c.Settings.WebServer.Log.Path
	if logPath == "" {
		logPath = "api.log"
	}
	apiLogger, closeFunc, err := logging.NewFileLogger(logPath, "api", c.apiLevelVar)
	if err != nil {
		c.logger.Printf("Warning: failed to initialize API structured logger: %v", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: c.apiLevelVar})
		c.apiLogger = slog.New(fbHandler).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
		return
	}
	c.apiLogger = apiLogger
	c.apiLoggerClose = closeFunc
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/notifications", c.ListNotifications)
	c.Group.POST("/notify", c.IngestEvent)
	c.Group.GET("/classify", c.ClassifyEntity)
	c.Group.GET("/config", c.GetConfig)
	c.Group.PUT("/config", c.UpdateConfig)
	c.Group.GET("/mqtt/status", c.GetMQTTStatus)
	c.Group.POST("/mqtt/test", c.TestMQTTConnection)
}

// SetMQTTConnectedFunc installs the callback that reports live broker
// connectivity. The daemon wires it to the running consumer; without it the
// status endpoint reports disconnected.
func (c *Controller) SetMQTTConnectedFunc(f func() bool) {
	c.settingsMutex.Lock()
	defer c.settingsMutex.Unlock()
	c.mqttConnected = f
}

// LoggingMiddleware logs every API request with method, path, status and
// latency through the structured logger.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}

			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API request", attrs...)

			return err
		}
	}
}

// MetricsMiddleware records request counts, durations and the in-flight
// gauge. It is a no-op without a metrics registry.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.metrics == nil || c.metrics.HTTP == nil {
				return next(ctx)
			}

			c.metrics.HTTP.RequestStarted()
			start := time.Now()

			err := next(ctx)

			c.metrics.HTTP.RequestFinished()
			// ctx.Path() is the route template, so the label cardinality
			// stays bounded no matter what clients request.
			c.metrics.HTTP.RecordHTTPRequest(ctx.Request().Method, ctx.Path(),
				ctx.Response().Status, time.Since(start).Seconds())
			if err != nil {
				c.metrics.HTTP.RecordHTTPRequestError(ctx.Request().Method, ctx.Path(), requestErrorType(err))
			}

			return err
		}
	}
}

// requestErrorType maps a handler error to a bounded label value for the
// request error counter.
func requestErrorType(err error) string {
	var enhancedErr *errors.EnhancedError
	if errors.As(err, &enhancedErr) {
		switch enhancedErr.GetCategory() {
		case string(errors.CategoryValidation):
			return "validation"
		case string(errors.CategoryDatabase), string(errors.CategoryState):
			return "database"
		case string(errors.CategoryNetwork), string(errors.CategoryTimeout):
			return "network"
		case string(errors.CategoryClassification), string(errors.CategoryPolicy):
			return "classification"
		case string(errors.CategoryConfiguration):
			return "configuration"
		default:
			return "system"
		}
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		switch echoErr.Code {
		case http.StatusBadRequest:
			return "validation"
		case http.StatusUnauthorized, http.StatusForbidden:
			return "auth"
		case http.StatusNotFound:
			return "not_found"
		default:
			return "system"
		}
	}

	return "unknown"
}

// ErrorResponse is the JSON body returned for every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	correlationID := generateCorrelationID()

	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// generateCorrelationID creates a unique identifier for error tracking using
// cryptographic randomness.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs the error with a correlation id and returns the matching
// JSON error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	if c.apiLogger != nil {
		errorStr := message
		if err != nil {
			errorStr = err.Error()
		}
		c.apiLogger.Error("API error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(code, errorResp)
}

// Debug logs debug messages when web server debug mode is enabled.
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		msg := fmt.Sprintf(format, v...)
		c.logger.Printf("[DEBUG] %s", msg)
		if c.apiLogger != nil {
			c.apiLogger.Debug(msg)
		}
	}
}

// Shutdown releases controller resources. Called when the server stops.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Error closing API log file: %v", err)
		}
	}
	if c.responseCache != nil {
		c.responseCache.Flush()
	}
}

// uptime reports how long the controller has been serving.
func (c *Controller) uptime() time.Duration {
	return time.Since(c.startTime)
}
