// Package http wires the gin engine, middleware chain and routes.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/quotagate/internal/config"
	"github.com/turtacn/quotagate/internal/interfaces/http/handlers"
	"github.com/turtacn/quotagate/internal/interfaces/http/middleware"
	"github.com/turtacn/quotagate/pkg/constants"
	"github.com/turtacn/quotagate/pkg/logger"
)

// Router HTTP 路由器
type Router struct {
	engine           *gin.Engine
	config           *config.Config
	logger           logger.Logger
	gatherer         prometheus.Gatherer
	spans            middleware.ServerSpanStarter
	metrics          middleware.HTTPMetrics
	healthHandler    *handlers.HealthHandler
	admissionHandler *handlers.AdmissionHandler
	server           *http.Server
}

// NewRouter 创建路由器
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	gatherer prometheus.Gatherer,
	spans middleware.ServerSpanStarter,
	metrics middleware.HTTPMetrics,
	healthHandler *handlers.HealthHandler,
	admissionHandler *handlers.AdmissionHandler,
) *Router {
	// 设置 Gin 模式
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	engine := gin.New()

	return &Router{
		engine: engine,
		server: &http.Server{
			Addr:           cfg.Server.Addr(),
			Handler:        engine,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: 1 << 20, // 1MB
		},
		config:           cfg,
		logger:           log,
		gatherer:         gatherer,
		spans:            spans,
		metrics:          metrics,
		healthHandler:    healthHandler,
		admissionHandler: admissionHandler,
	}
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes() {
	// 全局中间件
	r.engine.Use(
		middleware.RequestID(),
		middleware.Recovery(r.logger),
		middleware.Observability(r.spans, r.metrics),
		middleware.AccessLog(r.logger),
	)

	// CORS 配置
	origins := r.config.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.engine.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", constants.HeaderRequestID, constants.HeaderDeviceID},
		ExposeHeaders: []string{
			constants.HeaderRequestID,
			constants.HeaderRateLimitLimit,
			constants.HeaderRateLimitRemaining,
			constants.HeaderRateLimitReset,
			constants.HeaderRetryAfter,
		},
		MaxAge: 12 * time.Hour,
	}))

	// 健康检查路由
	r.engine.GET("/health/live", r.healthHandler.LivenessCheck)
	r.engine.GET("/health/ready", r.healthHandler.ReadinessCheck)

	// Prometheus metrics
	if r.config.Monitoring.MetricsEnabled {
		path := r.config.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	// Pprof 性能分析（仅在非生产环境）
	if r.config.Server.EnablePprof {
		pprof.Register(r.engine)
	}

	// API 路由组
	v1 := r.engine.Group("/api/v1")
	{
		v1.POST("/admission/check", r.admissionHandler.Check)
		v1.GET("/policies", r.admissionHandler.Policies)
	}

	// 404 处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "The requested resource was not found",
		})
	})
}

// Start 启动 HTTP 服务器. It blocks until the server stops and returns nil after Stop.
func (r *Router) Start() error {
	r.SetupRoutes()

	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", r.server.Addr))

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 停止 HTTP 服务器
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info(ctx, "Stopping HTTP server...")
	return r.server.Shutdown(ctx)
}

// Engine exposes the gin engine for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

//Personal.AI order the ending
