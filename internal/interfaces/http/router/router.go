// Package router assembles the gin engine of the stock ledger API.
package router

import (
	"time"

	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// APIPrefix is where every ledger resource is mounted
const APIPrefix = "/api/v1"

// RouteRegistrar is implemented by the handlers
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Mount registers the handlers under APIPrefix. Unknown routes and methods
// answer with the API error envelope instead of gin's plain text.
func Mount(engine *gin.Engine, registrars ...RouteRegistrar) {
	api := engine.Group(APIPrefix)
	for _, r := range registrars {
		r.RegisterRoutes(api)
	}
	engine.NoRoute(envelope(dto.ErrCodeRouteNotFound, "No such route"))
	engine.NoMethod(envelope(dto.ErrCodeMethodNotAllowed, "Method not allowed on this route"))
}

func envelope(code, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetErrorCode(c, code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, c.GetString(logger.GinRequestIDKey)))
	}
}

// EngineConfig selects the middleware of the engine
type EngineConfig struct {
	Logger         *zap.Logger
	CORS           middleware.CORSConfig
	Tracing        middleware.TracingConfig
	Meter          metric.Meter // nil disables HTTP metrics
	MaxBodySize    int64
	RequestTimeout time.Duration
	TrustedProxies []string
}

// NewEngine builds a gin engine. Recovery comes first; the request id and
// actor must be set before tracing and the access log read them.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	chain := []gin.HandlerFunc{
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Actor(),
		middleware.Tracing(cfg.Tracing),
		middleware.SpanEnricher(),
		logger.GinMiddleware(log),
		middleware.HTTPMetrics(cfg.Meter),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
		middleware.Timeout(cfg.RequestTimeout),
	}
	if cfg.MaxBodySize > 0 {
		chain = append(chain, middleware.BodyLimit(cfg.MaxBodySize))
	}
	engine.Use(chain...)
	return engine, nil
}
