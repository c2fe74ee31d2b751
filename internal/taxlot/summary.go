package taxlot

import (
	"sort"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// LongTermDays é o prazo mínimo, inclusivo, para um ganho ser de longo prazo.
const LongTermDays = 365

var hundred = decimal.NewFromInt(100)

// Rates são as alíquotas em percentual. Pertencem ao chamador.
type Rates struct {
	ShortTermPct decimal.Decimal `json:"shortTermPct"`
	LongTermPct  decimal.Decimal `json:"longTermPct"`
}

func DefaultRates() Rates {
	return Rates{
		ShortTermPct: decimal.NewFromInt(35),
		LongTermPct:  decimal.NewFromInt(15),
	}
}

func IsLongTerm(e domain.GainEntry) bool {
	return e.HoldingDays >= LongTermDays
}

func Aggregate(entries []domain.GainEntry) domain.Totals {
	totals := domain.Totals{
		ShortTerm: decimal.Zero,
		LongTerm:  decimal.Zero,
	}

	for _, e := range entries {
		if IsLongTerm(e) {
			totals.LongTerm = totals.LongTerm.Add(e.Gain)
		} else {
			totals.ShortTerm = totals.ShortTerm.Add(e.Gain)
		}
	}

	totals.TotalGain = totals.ShortTerm.Add(totals.LongTerm)
	return totals
}

// BuildForm monta o resumo de um ano fiscal com as entradas cuja venda caiu
// naquele ano civil (UTC).
func BuildForm(entries []domain.GainEntry, year int, taxpayer string) domain.TaxForm {
	form := domain.TaxForm{
		Taxpayer:       taxpayer,
		TaxYear:        year,
		TotalProceeds:  decimal.Zero,
		TotalCostBasis: decimal.Zero,
		Entries:        make([]domain.GainEntry, 0),
	}

	for _, e := range entries {
		if e.SellDate.UTC().Year() != year {
			continue
		}
		form.Entries = append(form.Entries, e)
		form.TotalProceeds = form.TotalProceeds.Add(e.Proceeds())
		form.TotalCostBasis = form.TotalCostBasis.Add(e.CostBasis())
	}

	totals := Aggregate(form.Entries)
	form.TotalGain = form.TotalProceeds.Sub(form.TotalCostBasis)
	form.ShortTerm = totals.ShortTerm
	form.LongTerm = totals.LongTerm

	return form
}

func EstimateTaxDue(form domain.TaxForm, rates Rates) decimal.Decimal {
	short := form.ShortTerm.Mul(rates.ShortTermPct).Div(hundred)
	long := form.LongTerm.Mul(rates.LongTermPct).Div(hundred)
	return short.Add(long)
}

func TaxYears(entries []domain.GainEntry) []int {
	seen := make(map[int]struct{})
	years := make([]int, 0)

	for _, e := range entries {
		y := e.SellDate.UTC().Year()
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		years = append(years, y)
	}

	sort.Ints(years)
	return years
}
