package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeovahfialho/capgains-ledger/internal/config"
	"github.com/jeovahfialho/capgains-ledger/internal/ingestion"
	"github.com/jeovahfialho/capgains-ledger/internal/service"
	"github.com/jeovahfialho/capgains-ledger/internal/storage/cache"
	"github.com/jeovahfialho/capgains-ledger/internal/storage/postgres"
	pkglogger "github.com/jeovahfialho/capgains-ledger/pkg/logger"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadE()
	if err != nil {
		return nil, fmt.Errorf("erro na configuração: %w", err)
	}
	if err := pkglogger.Init(cfg.LogLevel, "console", cfg.Environment == "development"); err != nil {
		return nil, fmt.Errorf("erro ao inicializar logger: %w", err)
	}
	return cfg, nil
}

// connectDB conecta ao PostgreSQL
func connectDB(cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("erro ao conectar ao banco: %w", err)
	}
	return db, nil
}

// connectRedis conecta ao Redis
func connectRedis(cfg *config.Config) *cache.RedisCache {
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		fmt.Printf("Aviso: Redis não disponível, continuando sem cache: %v\n", err)
		return nil
	}
	return redisCache
}

func fetchExports(ctx context.Context, names []string, outputDir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer pkglogger.Close()

	fmt.Printf("🚀 Baixando %d exportação(ões) para %s...\n", len(names), outputDir)

	downloader := ingestion.NewDownloader(cfg.ExportBaseURL, cfg.Workers)
	svc := service.NewIngestionService(nil, nil, downloader, nil, cfg.Workers)

	paths, errs := svc.Fetch(ctx, names, outputDir)
	for _, err := range errs {
		fmt.Printf("❌ %v\n", err)
	}

	if len(paths) == 0 {
		return fmt.Errorf("nenhum arquivo foi baixado")
	}

	fmt.Printf("\n✅ %d arquivo(s) baixado(s):\n", len(paths))
	for _, p := range paths {
		fmt.Printf("   - %s\n", filepath.Base(p))
	}
	fmt.Printf("\n💡 Próximo passo: use 'load %s/*.csv' para carregar no banco\n", outputDir)

	return nil
}

// listFiles lista arquivos disponíveis
func listFiles(dataDir string) error {
	fmt.Printf("📂 Listando arquivos em %s\n\n", dataDir)

	csvFiles, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return err
	}

	if len(csvFiles) == 0 {
		fmt.Println("❌ Nenhum arquivo encontrado")
		fmt.Println("💡 Use 'fetch' para baixar exportações")
		return nil
	}

	fmt.Printf("📊 %d arquivos CSV:\n", len(csvFiles))
	totalSize := int64(0)
	for _, file := range csvFiles {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		totalSize += info.Size()

		fmt.Printf("  - %-30s %10s\n", filepath.Base(file), formatBytes(info.Size()))
	}
	fmt.Printf("\n💾 Tamanho total: %s\n", formatBytes(totalSize))

	return nil
}

// formatBytes formata tamanho em bytes
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func loadFiles(ctx context.Context, files []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer pkglogger.Close()

	db, err := connectDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisCache := connectRedis(cfg)
	var svcCache service.Cache
	if redisCache != nil {
		defer redisCache.Close()
		svcCache = redisCache
	}

	parser := ingestion.NewParser(cfg.BatchSize, cfg.Workers, cfg.Delimiter())
	loader := ingestion.NewBulkLoader(db.Pool(), cfg.BatchSize)
	svc := service.NewIngestionService(parser, loader, nil, svcCache, cfg.Workers)

	fmt.Printf("📥 Carregando %d padrão(ões) de arquivo...\n\n", len(files))

	summary, err := svc.LoadFiles(ctx, files)
	if err != nil {
		return err
	}

	for _, f := range summary.Failed {
		fmt.Printf("❌ Erro em %s: %s\n", f.FilePath, f.Error)
	}

	fmt.Printf("📊 %d arquivo(s), %d registros lidos, %d novos, %d linhas com erro (%s)\n",
		summary.Files, summary.Records, summary.Inserted, summary.ParseErrors, summary.Duration)

	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d arquivo(s) não carregado(s)", len(summary.Failed))
	}
	return nil
}

func migrate(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer pkglogger.Close()

	db, err := connectDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("🔄 Aplicando migrações...")
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	fmt.Println("✅ Banco pronto!")
	return nil
}

// checkHealth verifica a saúde do sistema
func checkHealth(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer pkglogger.Close()

	fmt.Println("🏥 Verificando saúde do sistema...")
	fmt.Println()

	fmt.Print("PostgreSQL: ")
	db, err := connectDB(cfg)
	if err != nil {
		fmt.Printf("❌ Erro: %v\n", err)
	} else {
		defer db.Close()

		n, err := postgres.NewTradeRepository(db).Count(ctx)
		if err != nil {
			fmt.Printf("❌ Erro na query: %v\n", err)
		} else {
			fmt.Printf("✅ OK (%d operações)\n", n)
		}
	}

	fmt.Print("Redis: ")
	redisCache := connectRedis(cfg)
	if redisCache == nil {
		fmt.Println("❌ Não disponível")
	} else {
		defer redisCache.Close()

		if err := redisCache.HealthCheck(ctx); err != nil {
			fmt.Printf("❌ Erro: %v\n", err)
		} else {
			fmt.Println("✅ OK")
		}
	}

	fmt.Println("\n✅ Verificação concluída!")
	return nil
}
