package postgres

import (
	"context"
	"fmt"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/jeovahfialho/capgains-ledger/pkg/logger"
	"github.com/jeovahfialho/capgains-ledger/pkg/metrics"
	"go.uber.org/zap"
)

type TradeRepository struct {
	db *DB
}

func NewTradeRepository(db *DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// List devolve todos os registros na ordem de inserção, que é a ordem de
// desempate entre operações com a mesma data. Não há filtro por token aqui:
// registros sem token pertencem ao token padrão, que só o motor conhece.
func (r *TradeRepository) List(ctx context.Context) ([]domain.TradeRecord, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("list_trades"))

	query := `
        SELECT
            id,
            action,
            token,
            quantity,
            price_per_unit,
            trade_date
        FROM trades
        ORDER BY seq ASC
    `

	rows, err := r.db.pool.Query(ctx, query)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("list_trades", "error").Inc()
		return nil, fmt.Errorf("erro ao buscar trades: %w", err)
	}
	defer rows.Close()

	records := make([]domain.TradeRecord, 0)
	for rows.Next() {
		var rec domain.TradeRecord
		var quantity, price, date string

		if err := rows.Scan(&rec.ID, &rec.Action, &rec.Token, &quantity, &price, &date); err != nil {
			return nil, fmt.Errorf("erro ao escanear trade: %w", err)
		}

		rec.Quantity = domain.LooseValue(quantity)
		rec.PricePerUnit = domain.LooseValue(price)
		rec.Date = domain.LooseValue(date)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		metrics.DatabaseQueries.WithLabelValues("list_trades", "error").Inc()
		return nil, fmt.Errorf("erro ao iterar resultados: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("list_trades", "success").Inc()
	logger.Debug("trades recuperados", zap.Int("records", len(records)))

	return records, nil
}

func (r *TradeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.pool.QueryRow(ctx, "SELECT count(*) FROM trades").Scan(&n); err != nil {
		return 0, fmt.Errorf("erro ao contar trades: %w", err)
	}
	return n, nil
}
