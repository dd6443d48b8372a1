package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/hedspi/phone-assistant/internal/http/handlers"
	httpMW "github.com/hedspi/phone-assistant/internal/http/middleware"
	"github.com/hedspi/phone-assistant/internal/observability"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	ChatHandler   *httpH.ChatHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/", cfg.HealthHandler.HealthCheck)
	}
	// Answers 503 when metrics are disabled.
	r.GET("/metrics", gin.WrapH(cfg.Metrics))

	// Chat
	if h := cfg.ChatHandler; h != nil {
		r.POST("/get_message", h.GetMessage)
		r.POST("/stream_message", h.StreamMessage)
		r.GET("/get_history", h.GetHistory)
		r.DELETE("/delete_history", h.DeleteHistory)
		r.GET("/config", h.GetConfig)
		r.POST("/config", h.UpdateConfig)
		r.GET("/export_history", h.ExportHistory)
		r.POST("/agent", h.Agent)
	}

	r.NoRoute(httpH.NotFound)
	return r
}
