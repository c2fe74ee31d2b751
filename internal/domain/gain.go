package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GainEntry é um ganho realizado de uma venda contra um lote de compra.
// BuyID e BuyDate são nil quando a venda não encontrou lote (IsEstimated).
type GainEntry struct {
	SellID      string          `json:"sellId"`
	BuyID       *string         `json:"buyId"`
	Token       string          `json:"token"`
	Qty         decimal.Decimal `json:"qty"`
	BuyPrice    decimal.Decimal `json:"buyPrice"`
	SellPrice   decimal.Decimal `json:"sellPrice"`
	Gain        decimal.Decimal `json:"gain"`
	HoldingDays int             `json:"holdingDays"`
	BuyDate     *time.Time      `json:"buyDate"`
	SellDate    time.Time       `json:"sellDate"`
	IsEstimated bool            `json:"isEstimated"`
}

func (e GainEntry) Proceeds() decimal.Decimal {
	return e.SellPrice.Mul(e.Qty)
}

func (e GainEntry) CostBasis() decimal.Decimal {
	return e.BuyPrice.Mul(e.Qty)
}

// OpenLot é o saldo de uma compra que nenhuma venda consumiu.
type OpenLot struct {
	BuyID string          `json:"buyId"`
	Token string          `json:"token"`
	Qty   decimal.Decimal `json:"qty"`
	Price decimal.Decimal `json:"price"`
	Date  time.Time       `json:"date"`
}

type Totals struct {
	ShortTerm decimal.Decimal `json:"shortTerm"`
	LongTerm  decimal.Decimal `json:"longTerm"`
	TotalGain decimal.Decimal `json:"totalGain"`
}

type TaxForm struct {
	Taxpayer       string          `json:"taxpayer"`
	TaxYear        int             `json:"taxYear"`
	TotalProceeds  decimal.Decimal `json:"totalProceeds"`
	TotalCostBasis decimal.Decimal `json:"totalCostBasis"`
	TotalGain      decimal.Decimal `json:"totalGain"`
	ShortTerm      decimal.Decimal `json:"shortTerm"`
	LongTerm       decimal.Decimal `json:"longTerm"`
	Entries        []GainEntry     `json:"entries"`
}
