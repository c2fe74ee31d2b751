package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/jeovahfialho/capgains-ledger/internal/export"
	"github.com/jeovahfialho/capgains-ledger/internal/storage/cache"
	"github.com/jeovahfialho/capgains-ledger/internal/taxlot"
	"github.com/jeovahfialho/capgains-ledger/pkg/logger"
	"github.com/jeovahfialho/capgains-ledger/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidYear = errors.New("ano fiscal inválido")
	ErrInvalidRate = errors.New("alíquota inválida")
)

const (
	minTaxYear = 1970
	maxTaxYear = 9999
)

// ParseYear valida o ano vindo da URL ou da linha de comando.
func ParseYear(s string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidYear, s)
	}
	if err := ValidateYear(year); err != nil {
		return 0, err
	}
	return year, nil
}

func ValidateYear(year int) error {
	if year < minTaxYear || year > maxTaxYear {
		return fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	return nil
}

// ParseRates aplica alíquotas informadas pelo usuário (em %) sobre defaults.
// Sem nenhuma das duas devolve nil, e o serviço usa as da configuração.
func ParseRates(short, long string, defaults taxlot.Rates) (*taxlot.Rates, error) {
	short, long = strings.TrimSpace(short), strings.TrimSpace(long)
	if short == "" && long == "" {
		return nil, nil
	}

	rates := defaults
	if short != "" {
		d, err := decimal.NewFromString(short)
		if err != nil {
			return nil, fmt.Errorf("%w de curto prazo: %q", ErrInvalidRate, short)
		}
		rates.ShortTermPct = d
	}
	if long != "" {
		d, err := decimal.NewFromString(long)
		if err != nil {
			return nil, fmt.Errorf("%w de longo prazo: %q", ErrInvalidRate, long)
		}
		rates.LongTermPct = d
	}
	return &rates, nil
}

type Estimate struct {
	TaxYear   int             `json:"taxYear"`
	ShortTerm decimal.Decimal `json:"shortTerm"`
	LongTerm  decimal.Decimal `json:"longTerm"`
	Rates     taxlot.Rates    `json:"rates"`
	TaxDue    decimal.Decimal `json:"taxDue"`
}

func NewEstimate(form domain.TaxForm, rates taxlot.Rates) Estimate {
	return Estimate{
		TaxYear:   form.TaxYear,
		ShortTerm: form.ShortTerm,
		LongTerm:  form.LongTerm,
		Rates:     rates,
		TaxDue:    taxlot.EstimateTaxDue(form, rates),
	}
}

type TaxService struct {
	ledger   *LedgerService
	cache    Cache
	taxpayer string
	rates    taxlot.Rates
}

func NewTaxService(ledger *LedgerService, c Cache, taxpayer string, rates taxlot.Rates) *TaxService {
	return &TaxService{
		ledger:   ledger,
		cache:    c,
		taxpayer: taxpayer,
		rates:    rates,
	}
}

func (s *TaxService) Rates() taxlot.Rates {
	return s.rates
}

func (s *TaxService) taxpayerOrDefault(taxpayer string) string {
	if t := strings.TrimSpace(taxpayer); t != "" {
		return t
	}
	return s.taxpayer
}

// Form monta o formulário do ano com todas as vendas do histórico.
func (s *TaxService) Form(ctx context.Context, year int, taxpayer string) (domain.TaxForm, error) {
	if err := ValidateYear(year); err != nil {
		return domain.TaxForm{}, err
	}
	taxpayer = s.taxpayerOrDefault(taxpayer)
	key := cache.FormKey(year, taxpayer)

	if s.cache != nil {
		var cached domain.TaxForm
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			metrics.RecordCacheHit()
			metrics.RecordFormRequest(strconv.Itoa(year), true)
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("erro ao ler cache", zap.String("key", key), zap.Error(err))
		}
		metrics.RecordCacheMiss()
	}

	entries, err := s.ledger.Ledger(ctx, "")
	if err != nil {
		return domain.TaxForm{}, err
	}

	form := taxlot.BuildForm(entries, year, taxpayer)
	metrics.RecordFormRequest(strconv.Itoa(year), false)

	logger.Debug("formulário montado",
		zap.Int("year", year),
		zap.Int("entries", len(form.Entries)),
		zap.String("total_gain", form.TotalGain.String()))

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, form); err != nil {
			logger.Warn("erro ao salvar no cache", zap.String("key", key), zap.Error(err))
		}
	}

	return form, nil
}

// Estimate calcula o imposto do ano. rates nil usa as alíquotas configuradas.
func (s *TaxService) Estimate(ctx context.Context, year int, taxpayer string, rates *taxlot.Rates) (Estimate, error) {
	form, err := s.Form(ctx, year, taxpayer)
	if err != nil {
		return Estimate{}, err
	}
	return NewEstimate(form, s.ratesOrDefault(rates)), nil
}

// FormFor monta formulário e estimativa a partir de um livro já calculado,
// sem consultar o histórico armazenado.
func (s *TaxService) FormFor(entries []domain.GainEntry, year int, taxpayer string, rates *taxlot.Rates) (domain.TaxForm, Estimate, error) {
	if err := ValidateYear(year); err != nil {
		return domain.TaxForm{}, Estimate{}, err
	}
	form := taxlot.BuildForm(entries, year, s.taxpayerOrDefault(taxpayer))
	return form, NewEstimate(form, s.ratesOrDefault(rates)), nil
}

func (s *TaxService) ratesOrDefault(rates *taxlot.Rates) taxlot.Rates {
	if rates == nil {
		return s.rates
	}
	return *rates
}

func (s *TaxService) ExportCSV(ctx context.Context, w io.Writer, token string) error {
	entries, err := s.ledger.Ledger(ctx, token)
	if err != nil {
		return err
	}
	return export.WriteCSV(w, entries)
}

func (s *TaxService) ExportFormJSON(ctx context.Context, w io.Writer, year int, taxpayer string) error {
	form, err := s.Form(ctx, year, taxpayer)
	if err != nil {
		return err
	}
	return export.WriteFormJSON(w, form)
}

func (s *TaxService) ExportFormHTML(ctx context.Context, w io.Writer, year int, taxpayer string, rates *taxlot.Rates) error {
	form, err := s.Form(ctx, year, taxpayer)
	if err != nil {
		return err
	}
	return export.WriteReportHTML(w, BuildReport(form, s.ratesOrDefault(rates)))
}

func BuildReport(form domain.TaxForm, rates taxlot.Rates) export.Report {
	return export.Report{
		Form:        form,
		ShortRate:   rates.ShortTermPct,
		LongRate:    rates.LongTermPct,
		EstimateDue: taxlot.EstimateTaxDue(form, rates),
		GeneratedAt: time.Now().UTC(),
	}
}
