package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"HibiscusSOS/internal/handler"
	"HibiscusSOS/internal/models"
	"HibiscusSOS/internal/relay"
	"HibiscusSOS/internal/store"
	"HibiscusSOS/pkg/backup"
	"HibiscusSOS/pkg/cache"
	"HibiscusSOS/pkg/config"
	"HibiscusSOS/pkg/logger"
	"HibiscusSOS/pkg/metrics"
	"HibiscusSOS/pkg/middleware"
	"HibiscusSOS/pkg/util"
	"HibiscusSOS/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		logger.Fatal("load config failed", zap.Error(err))
	}
	cfg := config.GlobalConfig

	logger.Init(cfg.Log)
	defer logger.Sync()

	// 数据目录与数据库，打不开直接退出
	if err := os.MkdirAll(cfg.DataDir, os.ModePerm); err != nil {
		logger.Fatal("create data dir failed", zap.String("dir", cfg.DataDir), zap.Error(err))
	}

	db, err := util.OpenDatabase(cfg.DBDriver, cfg.DSN)
	if err != nil {
		logger.Fatal("open database failed", zap.String("dsn", cfg.DSN), zap.Error(err))
	}

	eventStore, err := store.NewStore(db)
	if err != nil {
		logger.Fatal("init store failed", zap.Error(err))
	}

	// WebSocket Hub 与警报路由
	wsConfig := websocket.LoadConfigFromEnv()
	if err := websocket.ValidateConfig(wsConfig); err != nil {
		logger.Fatal("invalid websocket config", zap.Error(err))
	}
	hub := websocket.NewHub(wsConfig, eventStore)
	router := relay.NewRouter(eventStore, hub)
	hub.SetRouter(router)

	// 快照缓存
	snapshotCache, err := cache.NewCache(cache.LoadConfigFromEnv())
	if err != nil {
		logger.Fatal("init cache failed", zap.Error(err))
	}

	// HTTP 路由
	if cfg.Mode != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(metrics.GinMiddleware())

	limiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimit != "" {
		limiterCfg.Rate = cfg.RateLimit
	}
	rateLimiter, err := middleware.RateLimiter(limiterCfg)
	if err != nil {
		logger.Fatal("init rate limiter failed", zap.Error(err))
	}
	engine.Use(rateLimiter)

	handlers.NewHandlers(db, eventStore, hub, snapshotCache).RegisterRoutes(engine)
	websocket.RegisterRoutes(engine, websocket.NewHandler(hub))
	engine.GET("/metrics", metrics.GinHandler())

	// 定时备份
	var backupCron *cron.Cron
	if cfg.BackupEnabled {
		c, err := backup.StartBackupScheduler()
		if err != nil {
			logger.Fatal("start backup scheduler failed", zap.Error(err))
		}
		backupCron = c
	}

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		logger.Info("SOS alert server started",
			zap.String("addr", addr),
			zap.String("database", cfg.DSN))
		eventStore.AppendEvent(models.EventServerStarted, map[string]interface{}{
			"port":      cfg.Port,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if strings.Contains(err.Error(), "address already in use") {
				logger.Fatal("port already in use, set PORT to a free port",
					zap.String("port", cfg.Port), zap.Error(err))
			}
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	if backupCron != nil {
		backupCron.Stop()
	}
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = snapshotCache.Close()

	logger.Info("server stopped")
}
