package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/jeovahfialho/capgains-ledger/internal/ingestion"
	"github.com/jeovahfialho/capgains-ledger/internal/storage/cache"
	"github.com/jeovahfialho/capgains-ledger/internal/taxlot"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	records []domain.TradeRecord
	calls   int
	err     error
}

func (f *fakeSource) List(context.Context) ([]domain.TradeRecord, error) {
	f.calls++
	return f.records, f.err
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ ...time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memoryCache) DeletePattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func history() []domain.TradeRecord {
	return []domain.TradeRecord{
		{ID: "b1", Action: "buy", Quantity: "10", PricePerUnit: "1", Date: "2023-01-01T00:00:00Z"},
		{ID: "b2", Action: "buy", Quantity: "5", PricePerUnit: "2", Date: "2023-06-01T00:00:00Z"},
		{ID: "s1", Action: "sell", Quantity: "12", PricePerUnit: "5", Date: "2024-01-10T00:00:00Z"},
		{ID: "x1", Action: "buy", Token: "BTC", Quantity: "1", PricePerUnit: "100", Date: "2024-02-01T00:00:00Z"},
		{ID: "bad", Action: "buy", Quantity: "1", PricePerUnit: "1", Date: "ontem"},
	}
}

func newServices(src TradeSource, c Cache) (*LedgerService, *TaxService) {
	ledger := NewLedgerService(src, taxlot.NewEngine("ETH"), c)
	return ledger, NewTaxService(ledger, c, "Ana", taxlot.DefaultRates())
}

func TestLedgerService_Result(t *testing.T) {
	ledger, _ := newServices(&fakeSource{records: history()}, nil)

	result, err := ledger.Result(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, 4, result.Accepted)
	assert.Equal(t, 1, result.Skipped)

	// b2 sobra com 3 unidades, x1 intacto
	require.Len(t, result.OpenLots, 2)
	assert.Equal(t, "b2", result.OpenLots[0].BuyID)
	assert.True(t, result.OpenLots[0].Qty.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "x1", result.OpenLots[1].BuyID)
}

func TestLedgerService_FilterByToken(t *testing.T) {
	ledger, _ := newServices(&fakeSource{records: history()}, nil)
	ctx := context.Background()

	eth, err := ledger.Ledger(ctx, "eth")
	require.NoError(t, err)
	assert.Len(t, eth, 2)

	btc, err := ledger.Ledger(ctx, "BTC")
	require.NoError(t, err)
	assert.NotNil(t, btc)
	assert.Empty(t, btc)

	lots, err := ledger.OpenLots(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, "x1", lots[0].BuyID)
}

func TestLedgerService_UsesCache(t *testing.T) {
	src := &fakeSource{records: history()}
	ledger, _ := newServices(src, newMemoryCache())
	ctx := context.Background()

	first, err := ledger.Aggregate(ctx, "")
	require.NoError(t, err)
	second, err := ledger.Aggregate(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.True(t, first.TotalGain.Equal(second.TotalGain))
	// 10*(5-1) + 2*(5-2)
	assert.Equal(t, "46", second.TotalGain.String())
}

func TestLedgerService_SourceError(t *testing.T) {
	ledger, _ := newServices(&fakeSource{err: errors.New("sem conexão")}, nil)
	_, err := ledger.Years(context.Background())
	assert.ErrorContains(t, err, "sem conexão")
}

func TestLedgerService_Compute(t *testing.T) {
	ledger, _ := newServices(nil, nil)
	result := ledger.Compute(nil)
	assert.NotNil(t, result.Entries)
	assert.NotNil(t, result.OpenLots)
	assert.Empty(t, result.Entries)
}

func TestTaxService_FormAndEstimate(t *testing.T) {
	_, tax := newServices(&fakeSource{records: history()}, newMemoryCache())
	ctx := context.Background()

	form, err := tax.Form(ctx, 2024, "")
	require.NoError(t, err)
	assert.Equal(t, "Ana", form.Taxpayer)
	assert.Equal(t, 2024, form.TaxYear)
	assert.Equal(t, "60", form.TotalProceeds.String())
	assert.Equal(t, "14", form.TotalCostBasis.String())
	assert.Equal(t, "46", form.TotalGain.String())
	assert.Equal(t, "40", form.LongTerm.String())
	assert.Equal(t, "6", form.ShortTerm.String())

	estimate, err := tax.Estimate(ctx, 2024, "", nil)
	require.NoError(t, err)
	// 6*35% + 40*15%
	assert.True(t, estimate.TaxDue.Equal(decimal.RequireFromString("8.1")), estimate.TaxDue.String())

	custom := taxlot.Rates{ShortTermPct: decimal.NewFromInt(10), LongTermPct: decimal.Zero}
	estimate, err = tax.Estimate(ctx, 2024, "", &custom)
	require.NoError(t, err)
	assert.True(t, estimate.TaxDue.Equal(decimal.RequireFromString("0.6")))

	empty, err := tax.Form(ctx, 2023, "Bruno")
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
	assert.True(t, empty.TotalGain.IsZero())
}

func TestTaxService_InvalidYear(t *testing.T) {
	_, tax := newServices(&fakeSource{}, nil)

	_, err := tax.Form(context.Background(), 12, "")
	assert.ErrorIs(t, err, ErrInvalidYear)

	_, err = ParseYear("vinte")
	assert.ErrorIs(t, err, ErrInvalidYear)

	year, err := ParseYear(" 2024 ")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
}

func TestParseRates(t *testing.T) {
	defaults := taxlot.DefaultRates()

	rates, err := ParseRates("", " ", defaults)
	require.NoError(t, err)
	assert.Nil(t, rates)

	rates, err = ParseRates("10", "", defaults)
	require.NoError(t, err)
	require.NotNil(t, rates)
	assert.True(t, rates.ShortTermPct.Equal(decimal.NewFromInt(10)))
	assert.True(t, rates.LongTermPct.Equal(defaults.LongTermPct))

	rates, err = ParseRates("", "7.5", defaults)
	require.NoError(t, err)
	assert.True(t, rates.ShortTermPct.Equal(defaults.ShortTermPct))
	assert.Equal(t, "7.5", rates.LongTermPct.String())

	_, err = ParseRates("dez", "", defaults)
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = ParseRates("", "x", defaults)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestTaxService_Exports(t *testing.T) {
	_, tax := newServices(&fakeSource{records: history()}, nil)
	ctx := context.Background()

	var csvBuf bytes.Buffer
	require.NoError(t, tax.ExportCSV(ctx, &csvBuf, ""))
	lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
	assert.Len(t, lines, 3)

	var jsonBuf bytes.Buffer
	require.NoError(t, tax.ExportFormJSON(ctx, &jsonBuf, 2024, ""))
	var form domain.TaxForm
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &form))
	assert.Len(t, form.Entries, 2)

	var htmlBuf bytes.Buffer
	require.NoError(t, tax.ExportFormHTML(ctx, &htmlBuf, 2024, "", nil))
	assert.Contains(t, htmlBuf.String(), "2024")
}

func TestIngestionService_LoadFilesInvalidatesCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trades.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,action,quantity,pricePerUnit,date\nb1,buy,1,1,2024-01-01\n"), 0644))

	c := newMemoryCache()
	require.NoError(t, c.Set(context.Background(), cache.LedgerKey(""), "velho"))

	loader := &countingLoader{}
	svc := NewIngestionService(ingestion.NewParser(10, 1, ','), loader, nil, c, 2)

	summary, err := svc.LoadFiles(context.Background(), []string{filepath.Join(dir, "*.csv")})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, int64(1), summary.Inserted)
	assert.Empty(t, summary.Failed)
	assert.Empty(t, c.data)
}

func TestIngestionService_FetchWithoutDownloader(t *testing.T) {
	svc := NewIngestionService(nil, nil, nil, nil, 1)
	paths, errs := svc.Fetch(context.Background(), []string{"a.csv"}, t.TempDir())
	assert.Empty(t, paths)
	assert.Len(t, errs, 1)
}

type countingLoader struct{}

func (countingLoader) LoadTrades(_ context.Context, _ string, records []domain.TradeRecord) (int64, error) {
	return int64(len(records)), nil
}
