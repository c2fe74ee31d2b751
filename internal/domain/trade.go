package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// LooseValue guarda o texto bruto de um campo numérico ou de data, vindo de
// JSON (número, string ou null) ou de CSV. A conversão acontece no taxlot.
type LooseValue string

func (v *LooseValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}

	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = LooseValue(s)
		return nil
	}

	// números, booleanos e objetos ficam com o texto literal
	*v = LooseValue(data)
	return nil
}

func (v LooseValue) String() string {
	return strings.TrimSpace(string(v))
}

// TradeRecord é o registro como chega do armazenamento de recibos.
type TradeRecord struct {
	ID           string     `json:"id"`
	Action       string     `json:"action"`
	Token        string     `json:"token,omitempty"`
	Quantity     LooseValue `json:"quantity"`
	PricePerUnit LooseValue `json:"pricePerUnit"`
	Date         LooseValue `json:"date"`
}

// UnmarshalJSON aceita id, action e token em qualquer tipo JSON. Um item que
// não é objeto vira um registro vazio, descartado depois pelo taxlot.
func (r *TradeRecord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*r = TradeRecord{}
		return nil
	}

	var raw struct {
		ID           LooseValue `json:"id"`
		Action       LooseValue `json:"action"`
		Token        LooseValue `json:"token"`
		Quantity     LooseValue `json:"quantity"`
		PricePerUnit LooseValue `json:"pricePerUnit"`
		Date         LooseValue `json:"date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = TradeRecord{
		ID:           raw.ID.String(),
		Action:       raw.Action.String(),
		Token:        raw.Token.String(),
		Quantity:     raw.Quantity,
		PricePerUnit: raw.PricePerUnit,
		Date:         raw.Date,
	}
	return nil
}

// Trade é um TradeRecord já validado e convertido.
type Trade struct {
	ID           string
	Action       Action
	Token        string
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
	Date         time.Time
	Seq          int
}
