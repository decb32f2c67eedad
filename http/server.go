// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"studentoutcome/config"
	"studentoutcome/db"
	"studentoutcome/ml"
	"studentoutcome/monitoring"
	"studentoutcome/schema"
)

// BundleProvider hands out the bundle currently served.
type BundleProvider interface {
	Bundle() *ml.Bundle
}

// RunLister reads the training history.
type RunLister interface {
	ListRuns(limit int) ([]db.TrainingRun, error)
	LatestRun() (*db.TrainingRun, error)
}

// Deps 服务依赖
type Deps struct {
	Bundles   BundleProvider
	Predictor *ml.CachedPredictor
	Schema    *schema.Schema
	// Runs is optional; nil disables the training history route.
	Runs    RunLister
	Metrics *monitoring.MetricsCollector
	Logger  *zap.Logger
}

// Server HTTP服务器
type Server struct {
	server  *http.Server
	handler http.Handler
	deps    Deps
	logger  *zap.Logger
}

// NewServer 创建HTTP服务器
func NewServer(cfg config.HttpConfig, deps Deps) (*Server, error) {
	if deps.Bundles == nil || deps.Predictor == nil || deps.Schema == nil {
		return nil, errors.New("http server needs a bundle, predictor and schema")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetricsCollector()
	}

	s := &Server{deps: deps, logger: deps.Logger}

	mux := http.NewServeMux()
	s.registerHandlers(mux)

	route := func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		return pattern
	}

	// 创建中间件链
	chain := Chain(
		RecoveryMiddleware(deps.Logger),                        // 1. 恢复中间件（最先执行，捕获panic）
		LoggerMiddleware(deps.Logger, deps.Metrics, route),     // 2. 请求ID与日志
		SecurityHeadersMiddleware,                              // 3. 安全头中间件
		CORSMiddleware(cfg.AllowedOrigins),                     // 4. CORS中间件
		TimeoutMiddleware(cfg.RequestTimeout),                  // 5. 超时中间件
		RequestSizeMiddleware(cfg.MaxBodyBytes),                // 6. 请求体大小限制
	)
	s.handler = chain(mux)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(deps.Logger),
	}
	return s, nil
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start 启动服务器，阻塞直到服务器关闭
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}
