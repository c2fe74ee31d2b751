// Package taxlot casa compras e vendas pelo método FIFO e calcula os ganhos
// de capital realizados. Todas as funções são puras: cada execução tem as
// próprias filas de lotes, então o Engine pode ser usado por várias
// goroutines ao mesmo tempo.
package taxlot

import (
	"sort"
	"time"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

const DefaultToken = "ETH"

type Engine struct {
	defaultToken string
}

func NewEngine(defaultToken string) *Engine {
	if defaultToken == "" {
		defaultToken = DefaultToken
	}
	return &Engine{defaultToken: defaultToken}
}

type Result struct {
	Entries  []domain.GainEntry `json:"entries"`
	OpenLots []domain.OpenLot   `json:"openLots"`
	Accepted int                `json:"accepted"`
	Skipped  int                `json:"skipped"`
}

// ComputeGainLedger devolve os ganhos realizados na ordem de emissão:
// cronológica por venda e, dentro de uma venda, na ordem de consumo dos lotes.
func (e *Engine) ComputeGainLedger(records []domain.TradeRecord) []domain.GainEntry {
	return e.Run(records).Entries
}

func (e *Engine) Run(records []domain.TradeRecord) Result {
	trades, skipped := e.parseAll(records)

	// mesma data: vale a ordem de entrada
	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].Date.Equal(trades[j].Date) {
			return trades[i].Date.Before(trades[j].Date)
		}
		return trades[i].Seq < trades[j].Seq
	})

	queues := make(map[string]*lotQueue)
	var tokens []string

	queueFor := func(token string) *lotQueue {
		q, ok := queues[token]
		if !ok {
			q = &lotQueue{}
			queues[token] = q
			tokens = append(tokens, token)
		}
		return q
	}

	entries := make([]domain.GainEntry, 0, len(trades))

	for _, trade := range trades {
		switch trade.Action {
		case domain.ActionBuy:
			if !trade.Quantity.IsPositive() {
				continue
			}
			queueFor(trade.Token).push(&lot{
				id:    trade.ID,
				token: trade.Token,
				qty:   trade.Quantity,
				price: trade.PricePerUnit,
				date:  trade.Date,
			})

		case domain.ActionSell:
			entries = matchSell(entries, queueFor(trade.Token), trade)
		}
	}

	result := Result{
		Entries:  entries,
		Accepted: len(trades),
		Skipped:  skipped,
	}

	for _, token := range tokens {
		for _, l := range queues[token].remaining() {
			result.OpenLots = append(result.OpenLots, domain.OpenLot{
				BuyID: l.id,
				Token: l.token,
				Qty:   l.qty,
				Price: l.price,
				Date:  l.date,
			})
		}
	}

	return result
}

func (e *Engine) parseAll(records []domain.TradeRecord) ([]domain.Trade, int) {
	trades := make([]domain.Trade, 0, len(records))
	skipped := 0

	for i, record := range records {
		trade, ok := ParseTrade(record, e.defaultToken)
		if !ok {
			skipped++
			continue
		}
		trade.Seq = i
		trades = append(trades, trade)
	}

	return trades, skipped
}

func matchSell(entries []domain.GainEntry, queue *lotQueue, sell domain.Trade) []domain.GainEntry {
	remaining := sell.Quantity

	for remaining.IsPositive() && !queue.empty() {
		head := queue.front()
		matched := decimal.Min(remaining, head.qty)

		buyID := head.id
		buyDate := head.date

		entries = append(entries, domain.GainEntry{
			SellID:      sell.ID,
			BuyID:       &buyID,
			Token:       sell.Token,
			Qty:         matched,
			BuyPrice:    head.price,
			SellPrice:   sell.PricePerUnit,
			Gain:        sell.PricePerUnit.Sub(head.price).Mul(matched),
			HoldingDays: HoldingDays(head.date, sell.Date),
			BuyDate:     &buyDate,
			SellDate:    sell.Date,
		})

		head.qty = head.qty.Sub(matched)
		if head.qty.Sign() <= 0 {
			queue.pop()
		}
		remaining = remaining.Sub(matched)
	}

	if remaining.IsPositive() {
		entries = append(entries, domain.GainEntry{
			SellID:      sell.ID,
			Token:       sell.Token,
			Qty:         remaining,
			BuyPrice:    decimal.Zero,
			SellPrice:   sell.PricePerUnit,
			Gain:        sell.PricePerUnit.Mul(remaining),
			HoldingDays: 0,
			SellDate:    sell.Date,
			IsEstimated: true,
		})
	}

	return entries
}

// HoldingDays conta os dias inteiros entre a compra e a venda.
func HoldingDays(buy, sell time.Time) int {
	const secondsPerDay = 86400

	secs := sell.Unix() - buy.Unix()
	days := secs / secondsPerDay
	if secs%secondsPerDay != 0 && secs < 0 {
		days--
	}
	return int(days)
}
