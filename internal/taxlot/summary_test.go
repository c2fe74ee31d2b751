package taxlot

import (
	"testing"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_Empty(t *testing.T) {
	totals := Aggregate(nil)

	assertDecimal(t, "0", totals.ShortTerm)
	assertDecimal(t, "0", totals.LongTerm)
	assertDecimal(t, "0", totals.TotalGain)
}

func TestAggregate_TotalIsSumOfBuckets(t *testing.T) {
	ledger := NewEngine("").ComputeGainLedger([]domain.TradeRecord{
		rec("b1", "buy", "4", "10", "2020-01-01"),
		rec("b2", "buy", "4", "30", "2022-01-01"),
		rec("s1", "sell", "3", "8", "2022-02-01"),
		rec("s2", "sell", "4", "25", "2022-03-01"),
		rec("s3", "sell", "2", "50", "2022-04-01"),
	})

	totals := Aggregate(ledger)
	assert.True(t, totals.TotalGain.Equal(totals.ShortTerm.Add(totals.LongTerm)))
	// s1: 3*(8-10) = -6 long; s2: 1*(25-10)=15 long + 3*(25-30)=-15 short; s3: 1*(50-30)=20 short + 1*50 unmatched
	assertDecimal(t, "9", totals.LongTerm)
	assertDecimal(t, "55", totals.ShortTerm)
	assertDecimal(t, "64", totals.TotalGain)
}

func TestBuildForm_FiltersBySellYear(t *testing.T) {
	ledger := NewEngine("").ComputeGainLedger([]domain.TradeRecord{
		rec("b1", "buy", "10", "1", "2023-01-01"),
		rec("b2", "buy", "10", "2", "2023-06-01"),
		rec("s0", "sell", "2", "3", "2023-12-31T23:00:00Z"),
		rec("s1", "sell", "15", "5", "2024-01-10"),
	})

	form := BuildForm(ledger, 2024, "Ana")
	assert.Equal(t, "Ana", form.Taxpayer)
	assert.Equal(t, 2024, form.TaxYear)

	for _, e := range form.Entries {
		assert.Equal(t, 2024, e.SellDate.Year())
		assert.NotEqual(t, "s0", e.SellID)
	}
	require.Len(t, form.Entries, 2)

	// s1 consome 8 de b1 e 7 de b2
	assertDecimal(t, "75", form.TotalProceeds)
	assertDecimal(t, "22", form.TotalCostBasis)
	assertDecimal(t, "53", form.TotalGain)
	assertDecimal(t, "32", form.LongTerm)
	assertDecimal(t, "21", form.ShortTerm)

	prior := BuildForm(ledger, 2023, "Ana")
	require.Len(t, prior.Entries, 1)
	assert.Equal(t, "s0", prior.Entries[0].SellID)
}

func TestBuildForm_ExcludesPriorYearSellEvenWhenBuyInYear(t *testing.T) {
	ledger := NewEngine("").ComputeGainLedger([]domain.TradeRecord{
		rec("b1", "buy", "1", "1", "2023-12-01"),
		rec("s1", "sell", "1", "2", "2023-12-15"),
		rec("b2", "buy", "1", "1", "2024-01-02"),
	})

	form := BuildForm(ledger, 2024, "")
	assert.Empty(t, form.Entries)
	assertDecimal(t, "0", form.TotalGain)
}

func TestEstimateTaxDue(t *testing.T) {
	form := domain.TaxForm{
		ShortTerm: decimal.NewFromInt(1000),
		LongTerm:  decimal.NewFromInt(2000),
	}

	tests := []struct {
		name  string
		rates Rates
		want  string
	}{
		{"defaults", DefaultRates(), "650"},
		{"zero", Rates{ShortTermPct: decimal.Zero, LongTermPct: decimal.Zero}, "0"},
		{"fractional", Rates{ShortTermPct: decimal.RequireFromString("22.5"), LongTermPct: decimal.NewFromInt(10)}, "425"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, tt.want, EstimateTaxDue(form, tt.rates))
		})
	}
}

func TestTaxYears(t *testing.T) {
	ledger := NewEngine("").ComputeGainLedger([]domain.TradeRecord{
		rec("s3", "sell", "1", "1", "2025-02-01"),
		rec("s1", "sell", "1", "1", "2022-02-01"),
		rec("s2", "sell", "1", "1", "2022-05-01"),
	})

	assert.Equal(t, []int{2022, 2025}, TaxYears(ledger))
	assert.Equal(t, []int{}, TaxYears(nil))
}
