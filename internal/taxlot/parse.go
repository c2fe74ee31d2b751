package taxlot

import (
	"strconv"
	"strings"
	"time"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseTrade valida um registro bruto. Retorna false quando o registro não é
// uma operação (ação desconhecida ou data ilegível); campos numéricos
// ausentes ou inválidos viram zero. O token é normalizado em maiúsculas.
func ParseTrade(record domain.TradeRecord, defaultToken string) (domain.Trade, bool) {
	action := domain.Action(strings.ToLower(strings.TrimSpace(record.Action)))
	if action != domain.ActionBuy && action != domain.ActionSell {
		return domain.Trade{}, false
	}

	date, ok := ParseDate(record.Date.String())
	if !ok {
		return domain.Trade{}, false
	}

	token := strings.ToUpper(strings.TrimSpace(record.Token))
	if token == "" {
		token = strings.ToUpper(defaultToken)
	}

	return domain.Trade{
		ID:           record.ID,
		Action:       action,
		Token:        token,
		Quantity:     ParseNumber(record.Quantity.String()),
		PricePerUnit: ParseNumber(record.PricePerUnit.String()),
		Date:         date,
	}, true
}

func ParseNumber(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseDate aceita ISO-8601 com ou sem fuso (sem fuso = UTC) e epoch em
// milissegundos.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}

	return time.Time{}, false
}
