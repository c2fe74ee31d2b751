package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/jeovahfialho/capgains-ledger/internal/ingestion"
	"github.com/jeovahfialho/capgains-ledger/internal/taxlot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Precisa de um Postgres descartável: TEST_DATABASE_URL=postgres://... go test ./...
func testDB(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL não definida")
	}

	ctx := context.Background()
	db, err := Connect(ctx, url, 4, 1, 0)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	_, err = db.Pool().Exec(ctx, "TRUNCATE trades RESTART IDENTITY")
	require.NoError(t, err)

	return db
}

func TestTradeRepository_ListKeepsLoadOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	records := []domain.TradeRecord{
		{ID: "s1", Action: "sell", Quantity: "4", PricePerUnit: "5", Date: "2024-01-10"},
		{ID: "b1", Action: "buy", Token: "BTC", Quantity: "10", PricePerUnit: "1", Date: "2023-01-01"},
		{ID: "b2", Action: "buy", Quantity: "abc", PricePerUnit: "", Date: "not a date"},
	}

	loader := ingestion.NewBulkLoader(db.Pool(), 2)
	inserted, err := loader.LoadTrades(ctx, "a.csv", records)
	require.NoError(t, err)
	assert.Equal(t, int64(3), inserted)

	// recarregar o mesmo arquivo não duplica
	inserted, err = loader.LoadTrades(ctx, "a.csv", records)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	repo := NewTradeRepository(db)
	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, records, got)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestTradeRepository_TiedDatesFollowFileOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	dir := t.TempDir()

	var big strings.Builder
	big.WriteString("id,action,quantity,pricePerUnit,date\n")
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&big, "old%d,buy,1,1,2020-01-01\n", i)
	}
	big.WriteString("a1,buy,1,10,2024-01-01\n")

	first := filepath.Join(dir, "a.csv")
	second := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(first, []byte(big.String()), 0644))
	require.NoError(t, os.WriteFile(second, []byte(
		"id,action,quantity,pricePerUnit,date\nb1,buy,1,20,2024-01-01\ns1,sell,2001,30,2024-06-01\n"), 0644))

	pool := ingestion.NewWorkerPool(4, ingestion.NewParser(100, 2, ','), ingestion.NewBulkLoader(db.Pool(), 500))
	pool.Start(ctx)
	_, err := pool.ProcessFiles(ctx, []string{first, second})
	pool.Stop()
	require.NoError(t, err)

	records, err := NewTradeRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2003)
	assert.Equal(t, "a1", records[2000].ID)
	assert.Equal(t, "b1", records[2001].ID)

	// a venda esgota os lotes antigos e depois a1, que veio no primeiro arquivo
	entries := taxlot.NewEngine("ETH").ComputeGainLedger(records)
	last := entries[len(entries)-1]
	require.NotNil(t, last.BuyID)
	assert.Equal(t, "a1", *last.BuyID)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := testDB(t)
	assert.NoError(t, db.Migrate(context.Background()))
}
