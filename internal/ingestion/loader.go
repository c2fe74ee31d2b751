package ingestion

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/jeovahfialho/capgains-ledger/pkg/metrics"
)

// Loader grava registros no armazenamento de operações.
type Loader interface {
	LoadTrades(ctx context.Context, source string, records []domain.TradeRecord) (int64, error)
}

type BulkLoader struct {
	pool      *pgxpool.Pool
	batchSize int
}

func NewBulkLoader(pool *pgxpool.Pool, batchSize int) *BulkLoader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &BulkLoader{
		pool:      pool,
		batchSize: batchSize,
	}
}

var stagingColumns = []string{
	"id",
	"action",
	"token",
	"quantity",
	"price_per_unit",
	"trade_date",
	"source",
}

// LoadTrades copia os registros para uma tabela temporária e insere em trades
// na mesma ordem, ignorando ids já carregados. Devolve quantos eram novos.
func (l *BulkLoader) LoadTrades(ctx context.Context, source string, records []domain.TradeRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("load_trades"))

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE trades_staging (
			ord            BIGSERIAL,
			id             TEXT,
			action         TEXT,
			token          TEXT,
			quantity       TEXT,
			price_per_unit TEXT,
			trade_date     TEXT,
			source         TEXT
		) ON COMMIT DROP
	`)
	if err != nil {
		return 0, fmt.Errorf("erro ao criar tabela temporária: %w", err)
	}

	for _, chunk := range l.splitIntoChunks(records) {
		_, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"trades_staging"},
			stagingColumns,
			&recordSource{records: chunk, source: source},
		)
		if err != nil {
			metrics.TradesLoaded.WithLabelValues("error").Add(float64(len(chunk)))
			return 0, fmt.Errorf("erro no COPY: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO trades (id, action, token, quantity, price_per_unit, trade_date, source)
		SELECT id, action, token, quantity, price_per_unit, trade_date, source
		FROM trades_staging
		ORDER BY ord
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("erro ao inserir trades: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("erro no commit: %w", err)
	}

	inserted := tag.RowsAffected()
	metrics.TradesLoaded.WithLabelValues("inserted").Add(float64(inserted))
	metrics.TradesLoaded.WithLabelValues("duplicate").Add(float64(int64(len(records)) - inserted))

	return inserted, nil
}

type recordSource struct {
	records []domain.TradeRecord
	source  string
	index   int
}

func (rs *recordSource) Next() bool {
	rs.index++
	return rs.index <= len(rs.records)
}

func (rs *recordSource) Values() ([]interface{}, error) {
	if rs.index > len(rs.records) {
		return nil, nil
	}

	r := rs.records[rs.index-1]
	return []interface{}{
		r.ID,
		r.Action,
		r.Token,
		r.Quantity.String(),
		r.PricePerUnit.String(),
		r.Date.String(),
		rs.source,
	}, nil
}

func (rs *recordSource) Err() error {
	return nil
}

func (l *BulkLoader) splitIntoChunks(records []domain.TradeRecord) [][]domain.TradeRecord {
	var chunks [][]domain.TradeRecord

	for i := 0; i < len(records); i += l.batchSize {
		end := i + l.batchSize
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[i:end])
	}

	return chunks
}
