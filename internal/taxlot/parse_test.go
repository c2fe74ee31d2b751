package taxlot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-01-10", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), true},
		{"2024-01-10T12:30:00Z", time.Date(2024, 1, 10, 12, 30, 0, 0, time.UTC), true},
		{"2024-01-10T12:30:00-03:00", time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC), true},
		{"2024-01-10T12:30:00.250Z", time.Date(2024, 1, 10, 12, 30, 0, 250000000, time.UTC), true},
		{"2024-01-10 08:00:00", time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC), true},
		{"2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"1704844800000", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"ontem", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	assertDecimal(t, "1.5", ParseNumber("1.5"))
	assertDecimal(t, "1500", ParseNumber("1.5e3"))
	assertDecimal(t, "0", ParseNumber(""))
	assertDecimal(t, "0", ParseNumber("NaN"))
	assertDecimal(t, "0", ParseNumber("12abc"))
	assertDecimal(t, "-2", ParseNumber(" -2 "))
}

func TestParseTrade_FromJSON(t *testing.T) {
	payload := `[
		{"id":"a","action":"buy","quantity":10,"pricePerUnit":"1.25","date":"2023-01-01"},
		{"id":"b","action":"sell","token":"BTC","quantity":null,"date":1704844800000},
		{"id":"c","action":"stake","quantity":1,"pricePerUnit":1,"date":"2023-01-01"}
	]`

	var records []domain.TradeRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &records))
	require.Len(t, records, 3)

	buy, ok := ParseTrade(records[0], "ETH")
	require.True(t, ok)
	assert.Equal(t, domain.ActionBuy, buy.Action)
	assert.Equal(t, "ETH", buy.Token)
	assertDecimal(t, "10", buy.Quantity)
	assertDecimal(t, "1.25", buy.PricePerUnit)

	sell, ok := ParseTrade(records[1], "ETH")
	require.True(t, ok)
	assert.Equal(t, "BTC", sell.Token)
	assertDecimal(t, "0", sell.Quantity)
	assertDecimal(t, "0", sell.PricePerUnit)
	assert.Equal(t, 2024, sell.Date.Year())

	_, ok = ParseTrade(records[2], "ETH")
	assert.False(t, ok)
}
