// Package server assembles the router, middleware stack, and session
// manager into a runnable service.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/replgate/replgate/internal/config"
	apihttp "github.com/replgate/replgate/internal/http"
	"github.com/replgate/replgate/internal/logging"
	"github.com/replgate/replgate/internal/middleware"
	"github.com/replgate/replgate/internal/monitoring"
	"github.com/replgate/replgate/internal/pty"
	"github.com/replgate/replgate/internal/session"
	"github.com/replgate/replgate/internal/ws"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	manager *session.Manager
	httpSrv *http.Server
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config, logger *logging.Logger) *Server {
	store := logging.NewStore(cfg.Session.SessionLogCap, cfg.Session.GlobalLogCap)
	metrics := monitoring.NewMetrics()

	tuning := session.Tuning{
		DefaultTimeout: time.Duration(cfg.Session.DefaultTimeoutMs) * time.Millisecond,
		PollInterval:   time.Duration(cfg.Session.PollIntervalMs) * time.Millisecond,
		InitGrace:      time.Duration(cfg.Session.InitGraceMs) * time.Millisecond,
		MaxWait:        time.Duration(cfg.Session.MaxWaitSeconds) * time.Second,
		HistoryLimit:   cfg.Session.HistoryLimit,
		Cols:           cfg.Terminal.Cols,
		Rows:           cfg.Terminal.Rows,
	}
	manager := session.NewManager(pty.Spawn, tuning, logger, store, metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(monitoring.Middleware(metrics))

	apihttp.NewHandlers(manager, store).Register(router)

	wsHandler := ws.NewHandler(manager, logger, metrics)
	router.GET("/sessions/:id/stream", wsHandler.HandleStream)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return &Server{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		httpSrv: &http.Server{
			Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}
}

// Run starts serving and blocks until the listener closes.
func (s *Server) Run() error {
	s.logger.Info("server listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, drains in-flight requests, and
// tears down every live session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)

	destroyed := s.manager.DestroyAll()
	s.logger.Info("sessions destroyed on shutdown", zap.Int("count", destroyed))

	return err
}
