package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/jeovahfialho/capgains-ledger/internal/api"
	"github.com/jeovahfialho/capgains-ledger/internal/config"
	"github.com/jeovahfialho/capgains-ledger/internal/ingestion"
	"github.com/jeovahfialho/capgains-ledger/internal/service"
	"github.com/jeovahfialho/capgains-ledger/internal/storage/cache"
	"github.com/jeovahfialho/capgains-ledger/internal/storage/postgres"
	"github.com/jeovahfialho/capgains-ledger/internal/taxlot"
	pkglogger "github.com/jeovahfialho/capgains-ledger/pkg/logger"
)

// @title Capital Gains Ledger API
// @version 1.0
// @description API para apuração de ganhos de capital (FIFO), formulários anuais e exportações

// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
func main() {
	cfg := config.Load()

	if err := pkglogger.Init(cfg.LogLevel, cfg.LogFormat, cfg.Environment == "development"); err != nil {
		log.Fatal("Erro ao inicializar logger:", err)
	}
	defer pkglogger.Close()

	db, err := connectPostgres(cfg)
	if err != nil {
		pkglogger.Fatal("erro ao conectar PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		pkglogger.Fatal("erro ao aplicar migrações", zap.Error(err))
	}

	cacheService := connectRedis(cfg)
	var svcCache service.Cache
	if cacheService != nil {
		defer cacheService.Close()
		svcCache = cacheService
	}

	// Services
	engine := taxlot.NewEngine(cfg.DefaultToken)
	ledgerService := service.NewLedgerService(postgres.NewTradeRepository(db), engine, svcCache)
	taxService := service.NewTaxService(ledgerService, svcCache, cfg.Taxpayer, cfg.Rates())

	// Ingestion
	parser := ingestion.NewParser(cfg.BatchSize, cfg.Workers, cfg.Delimiter())
	loader := ingestion.NewBulkLoader(db.Pool(), cfg.BatchSize)
	downloader := ingestion.NewDownloader(cfg.ExportBaseURL, cfg.Workers)
	ingestionService := service.NewIngestionService(parser, loader, downloader, svcCache, cfg.Workers)

	handler := api.NewHandler(
		db,
		cacheService,
		ledgerService,
		taxService,
		ingestionService,
	)

	app := fiber.New(fiber.Config{
		Prefork:                 false,
		ServerHeader:            "Capgains-Ledger",
		DisableStartupMessage:   cfg.Environment != "development",
		AppName:                 "Capital Gains Ledger v1.0.0",
		ReadTimeout:             cfg.APIReadTimeout,
		WriteTimeout:            cfg.APIWriteTimeout,
		IdleTimeout:             120 * time.Second,
		ReadBufferSize:          8192,
		WriteBufferSize:         8192,
		ProxyHeader:             "X-Forwarded-For",
		EnableTrustedProxyCheck: true,
		BodyLimit:               10 * 1024 * 1024, // 10MB
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path} ${respHeader:X-Request-ID}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization",
		ExposeHeaders: "Content-Disposition,X-Request-ID",
	}))

	api.SetupRoutes(app, handler, api.RouteOptions{
		AdminUser:      cfg.AdminUser,
		AdminPassword:  cfg.AdminPassword,
		RateLimit:      cfg.APIRateLimit,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		pkglogger.Info("encerrando servidor")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			pkglogger.Error("erro no shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	pkglogger.Info("iniciando servidor", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		pkglogger.Fatal("erro no servidor", zap.Error(err))
	}
}

func connectPostgres(cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar conexão: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao testar conexão: %w", err)
	}

	pkglogger.Info("conectado ao PostgreSQL")
	return db, nil
}

func connectRedis(cfg *config.Config) *cache.RedisCache {
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		pkglogger.Warn("Redis não disponível, continuando sem cache", zap.Error(err))
		return nil
	}

	pkglogger.Info("conectado ao Redis")
	return redisCache
}
