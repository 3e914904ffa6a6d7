package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/rentdesk/internal/api/catalog"
	"github.com/langchou/rentdesk/internal/api/handlers"
	"github.com/langchou/rentdesk/internal/config"
	"github.com/langchou/rentdesk/internal/metrics"
	"github.com/langchou/rentdesk/internal/repository"
	"github.com/langchou/rentdesk/internal/service"
	"github.com/langchou/rentdesk/internal/state"
	"github.com/langchou/rentdesk/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Rentdesk",
		zap.String("port", cfg.ServerPort),
		zap.String("catalog_source", cfg.CatalogSource),
	)

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// 车辆目录
	catalogClient := catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout, logger)

	var source state.Source = catalogClient
	if cfg.CatalogSource == config.CatalogSourcePostgres {
		db, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect database", zap.Error(err))
		}
		defer db.Close()

		// 执行数据库迁移
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database migrated successfully")

		vehicleRepo := repository.NewVehicleRepository(db)
		if cfg.CatalogSeed {
			if err := seedCatalog(ctx, logger, vehicleRepo, catalogClient); err != nil {
				logger.Error("Failed to seed vehicle catalog", zap.Error(err))
			}
		}
		source = vehicleRepo
	}

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 创建预约服务
	reservationService := service.NewReservationService(
		logger,
		source,
		cfg.ChargeOptions(),
		m,
		cfg.SessionTTL,
	)
	reservationService.SetPublisher(wsHub)

	// 启动时拉取一次目录，失败时等待用户重新加载
	go reservationService.Start(ctx)
	go reservationService.RunSessionJanitor(ctx, cfg.SessionSweepInterval)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(logger, reservationService, wsHub, registry)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(m.Middleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 停止后台任务
	cancel()
	wsHub.Stop()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// seedCatalog 车辆表为空时从 HTTP 目录导入
func seedCatalog(ctx context.Context, logger *zap.Logger, repo *repository.VehicleRepository, client *catalog.Client) error {
	n, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	vehicles, err := client.ListVehicles(ctx)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}
	if err := repo.Upsert(ctx, vehicles); err != nil {
		return err
	}

	logger.Info("Vehicle catalog seeded", zap.Int("vehicles", len(vehicles)), zap.String("endpoint", client.Endpoint()))
	return nil
}
