package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"FinnPipeline/pkg/logger"
)

// Config API服务器配置
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server API服务器
type Server struct {
	router *gin.Engine
	srv    *http.Server
	logger *zap.Logger
}

// NewServer 创建新的API服务器
func NewServer(cfg Config, log *zap.Logger) *Server {
	log = logger.OrNop(log)
	router := gin.New()

	// 设置中间件
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(log))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		router: router,
		srv:    srv,
		logger: log,
	}
}

// SetupRoutes 设置路由
func (s *Server) SetupRoutes(handlers *Handlers) {
	// 健康检查
	s.router.GET("/health", handlers.HealthCheck)
	s.router.GET("/ready", handlers.ReadinessCheck)

	// API v1 路由组
	v1 := s.router.Group("/api/v1")
	{
		// 手动触发采集
		v1.POST("/pipeline/run", handlers.RunPipeline)

		// 最近一次运行结果
		v1.GET("/pipeline/last", handlers.LastRun)
	}
}

// Handler 路由，供测试使用
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 在后台启动服务器，监听失败通过返回的channel报告
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API服务器启动", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("启动服务器失败: %w", err)
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("正在关闭服务器...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}
	s.logger.Info("服务器已关闭")
	return nil
}
