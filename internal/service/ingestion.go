package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jeovahfialho/capgains-ledger/internal/ingestion"
	"github.com/jeovahfialho/capgains-ledger/internal/storage/cache"
	"github.com/jeovahfialho/capgains-ledger/pkg/logger"
	"go.uber.org/zap"
)

type IngestionService struct {
	parser     *ingestion.Parser
	loader     ingestion.Loader
	downloader *ingestion.Downloader
	cache      Cache
	workers    int
}

func NewIngestionService(parser *ingestion.Parser, loader ingestion.Loader, downloader *ingestion.Downloader, c Cache, workers int) *IngestionService {
	return &IngestionService{
		parser:     parser,
		loader:     loader,
		downloader: downloader,
		cache:      c,
		workers:    workers,
	}
}

type FileFailure struct {
	FilePath string `json:"file_path"`
	Error    string `json:"error"`
}

type LoadSummary struct {
	Files       int           `json:"files"`
	Records     int64         `json:"records"`
	Inserted    int64         `json:"inserted"`
	ParseErrors int           `json:"parse_errors"`
	Failed      []FileFailure `json:"failed,omitempty"`
	Duration    string        `json:"duration"`
}

// LoadFiles carrega os arquivos (aceita curingas) e invalida o cache quando
// algum registro novo entrou.
func (s *IngestionService) LoadFiles(ctx context.Context, patterns []string) (*LoadSummary, error) {
	start := time.Now()

	paths, err := ingestion.ExpandPaths(patterns)
	if err != nil {
		return nil, err
	}

	logger.Info("iniciando carga", zap.Strings("files", paths), zap.Int("workers", s.workers))

	pool := ingestion.NewWorkerPool(s.workers, s.parser, s.loader)
	pool.Start(ctx)
	results, err := pool.ProcessFiles(ctx, paths)
	pool.Stop()
	if err != nil {
		return nil, fmt.Errorf("carga interrompida: %w", err)
	}

	summary := &LoadSummary{Files: len(paths)}
	for _, r := range results {
		summary.Records += r.RecordsCount
		summary.Inserted += r.Inserted
		summary.ParseErrors += len(r.ParseErrors)

		for _, pe := range r.ParseErrors {
			logger.Warn("linha ignorada", zap.String("file", r.FilePath), zap.Error(pe))
		}
		if r.Error != nil {
			summary.Failed = append(summary.Failed, FileFailure{FilePath: r.FilePath, Error: r.Error.Error()})
			logger.Error("falha ao carregar arquivo", zap.String("file", r.FilePath), zap.Error(r.Error))
		}
	}

	if summary.Inserted > 0 {
		if err := s.InvalidateCache(ctx, cache.AllPattern); err != nil {
			logger.Warn("erro ao invalidar cache", zap.Error(err))
		}
	}

	summary.Duration = time.Since(start).String()
	logger.Info("carga concluída",
		zap.Int("files", summary.Files),
		zap.Int64("records", summary.Records),
		zap.Int64("inserted", summary.Inserted),
		zap.Int("failed", len(summary.Failed)))

	return summary, nil
}

// Fetch baixa exportações para outputDir. Os caminhos baixados com sucesso
// voltam na ordem pedida.
func (s *IngestionService) Fetch(ctx context.Context, names []string, outputDir string) ([]string, []error) {
	if s.downloader == nil {
		return nil, []error{fmt.Errorf("downloader não configurado")}
	}

	paths, errs := s.downloader.DownloadAll(ctx, names, outputDir)

	downloaded := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			downloaded = append(downloaded, p)
		}
	}
	return downloaded, errs
}

func (s *IngestionService) InvalidateCache(ctx context.Context, pattern string) error {
	if s.cache == nil {
		return nil
	}
	n, err := s.cache.DeletePattern(ctx, pattern)
	if err != nil {
		return err
	}
	logger.Info("cache invalidado", zap.String("pattern", pattern), zap.Int64("keys", n))
	return nil
}
