package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/jeovahfialho/capgains-ledger/internal/storage/cache"
	"github.com/jeovahfialho/capgains-ledger/internal/taxlot"
	"github.com/jeovahfialho/capgains-ledger/pkg/logger"
	"github.com/jeovahfialho/capgains-ledger/pkg/metrics"
	"go.uber.org/zap"
)

// TradeSource devolve o histórico completo na ordem de carga.
type TradeSource interface {
	List(ctx context.Context) ([]domain.TradeRecord, error)
}

// Cache é o subconjunto do RedisCache usado pelos serviços. nil desliga o
// cache.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}

type LedgerService struct {
	trades TradeSource
	engine *taxlot.Engine
	cache  Cache
}

func NewLedgerService(trades TradeSource, engine *taxlot.Engine, c Cache) *LedgerService {
	return &LedgerService{
		trades: trades,
		engine: engine,
		cache:  c,
	}
}

// Compute roda o motor sobre registros recebidos diretamente, sem tocar no
// armazenamento nem no cache.
func (s *LedgerService) Compute(records []domain.TradeRecord) taxlot.Result {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.LedgerComputationDuration.WithLabelValues("compute"))

	result := s.engine.Run(records)
	recordResult(result)
	return normalize(result)
}

// Result devolve o livro de ganhos do histórico armazenado. Com token, só as
// entradas e lotes daquele token; a contagem de registros é sempre global.
func (s *LedgerService) Result(ctx context.Context, token string) (*taxlot.Result, error) {
	key := cache.LedgerKey(token)

	if s.cache != nil {
		var cached taxlot.Result
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			metrics.RecordCacheHit()
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("erro ao ler cache", zap.String("key", key), zap.Error(err))
		}
		metrics.RecordCacheMiss()
	}

	records, err := s.trades.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar histórico: %w", err)
	}

	timer := metrics.NewTimer()
	full := s.engine.Run(records)
	timer.ObserveDuration(metrics.LedgerComputationDuration.WithLabelValues("ledger"))
	recordResult(full)

	result := normalize(filterByToken(full, token))

	logger.Info("livro de ganhos calculado",
		zap.String("token", token),
		zap.Int("records", len(records)),
		zap.Int("skipped", result.Skipped),
		zap.Int("entries", len(result.Entries)),
		zap.Duration("duration", timer.Elapsed()))

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result); err != nil {
			logger.Warn("erro ao salvar no cache", zap.String("key", key), zap.Error(err))
		}
	}

	return &result, nil
}

func (s *LedgerService) Ledger(ctx context.Context, token string) ([]domain.GainEntry, error) {
	result, err := s.Result(ctx, token)
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

func (s *LedgerService) OpenLots(ctx context.Context, token string) ([]domain.OpenLot, error) {
	result, err := s.Result(ctx, token)
	if err != nil {
		return nil, err
	}
	return result.OpenLots, nil
}

func (s *LedgerService) Aggregate(ctx context.Context, token string) (domain.Totals, error) {
	entries, err := s.Ledger(ctx, token)
	if err != nil {
		return domain.Totals{}, err
	}
	return taxlot.Aggregate(entries), nil
}

func (s *LedgerService) Years(ctx context.Context) ([]int, error) {
	entries, err := s.Ledger(ctx, "")
	if err != nil {
		return nil, err
	}
	return taxlot.TaxYears(entries), nil
}

func filterByToken(result taxlot.Result, token string) taxlot.Result {
	token = strings.TrimSpace(token)
	if token == "" {
		return result
	}

	filtered := taxlot.Result{
		Accepted: result.Accepted,
		Skipped:  result.Skipped,
	}
	for _, e := range result.Entries {
		if strings.EqualFold(e.Token, token) {
			filtered.Entries = append(filtered.Entries, e)
		}
	}
	for _, l := range result.OpenLots {
		if strings.EqualFold(l.Token, token) {
			filtered.OpenLots = append(filtered.OpenLots, l)
		}
	}
	return filtered
}

// normalize troca slices nil por vazios para o JSON sair como [].
func normalize(result taxlot.Result) taxlot.Result {
	if result.Entries == nil {
		result.Entries = []domain.GainEntry{}
	}
	if result.OpenLots == nil {
		result.OpenLots = []domain.OpenLot{}
	}
	return result
}

func recordResult(result taxlot.Result) {
	unmatched := 0
	for _, e := range result.Entries {
		if e.IsEstimated {
			unmatched++
		}
	}
	metrics.RecordTrades(result.Accepted, result.Skipped)
	metrics.RecordGainEntries(len(result.Entries)-unmatched, unmatched)
}
