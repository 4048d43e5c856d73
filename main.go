package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wallet-trust-system/config"
	"wallet-trust-system/events"
	"wallet-trust-system/handlers"
	"wallet-trust-system/middleware"
	"wallet-trust-system/repository"
	"wallet-trust-system/services"
	"wallet-trust-system/utils"
	"wallet-trust-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("❌ invalid configuration", zap.Error(err))
	}
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := repository.AutoMigrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	var wallets repository.WalletStore = repository.NewGormWalletStore(db)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		wallets = repository.NewCachedWalletStore(wallets, rdb, cfg.WalletCacheTTL, logger)
		logger.Info("✅ wallet lookup cache enabled")
	}

	var publisher events.Publisher = events.LogPublisher{Logger: logger}
	if brokers := events.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		publisher = events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		logger.Info("✅ publishing events to kafka", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()

	core := services.NewCore(
		wallets,
		repository.NewGormTrustStore(db),
		repository.NewGormTransferStore(db),
		repository.NewGormExecutionJournal(db),
		services.WithEvents(publisher),
		services.WithLogger(logger),
	)
	walletService := services.NewWalletService(core, cfg.JWTSecret, cfg.JWTTTL, logger)

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Origins(), ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	// 🔐 Only gateway requests, except the scrape endpoint
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken, logger, "/metrics"))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.SetupWalletRoutes(app, walletService)

	sched, err := workers.NewScheduler(logger)
	if err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	if cfg.TransferTTL > 0 {
		expiry := workers.NewTransferExpiryWorker(core, cfg.TransferTTL, logger)
		if err := sched.Every("transfer-expiry", cfg.ExpiryInterval, expiry.Run); err != nil {
			logger.Fatal("failed to schedule transfer expiry", zap.Error(err))
		}
	}
	if cfg.AuditExportEnabled() {
		r2, err := utils.NewR2Client(context.Background(), cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2AccessKeySecret, cfg.R2Bucket)
		if err != nil {
			logger.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		exporter := workers.NewAuditExporter(core.Trusts, core.Transfers, r2, time.Now().Add(-cfg.AuditExportInterval), logger)
		if err := sched.Every("audit-export", cfg.AuditExportInterval, exporter.Run); err != nil {
			logger.Fatal("failed to schedule audit export", zap.Error(err))
		}
	} else {
		logger.Warn("⚠️  R2 not configured, audit export disabled")
	}
	sched.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()
	logger.Info("✅ Server running", zap.String("port", cfg.Port))

	<-ctx.Done()
	logger.Info("Shutting down server...")
	if err := sched.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}
