// Package export gera os arquivos de saída do livro de ganhos: CSV das
// entradas, JSON do formulário anual e o relatório HTML para impressão.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
)

const (
	CSVFilename    = "capital_gains.csv"
	CSVContentType = "text/csv"
)

var CSVHeader = []string{
	"sellId",
	"buyId",
	"token",
	"qty",
	"buyPrice",
	"sellPrice",
	"gain",
	"holdingDays",
	"buyDate",
	"sellDate",
}

// WriteCSV escreve uma linha por entrada. Campos com vírgula, aspas ou quebra
// de linha saem entre aspas.
func WriteCSV(w io.Writer, entries []domain.GainEntry) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("erro ao escrever cabeçalho: %w", err)
	}

	for _, e := range entries {
		if err := writer.Write(EntryToRow(e)); err != nil {
			return fmt.Errorf("erro ao escrever entrada %s: %w", e.SellID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func EntryToRow(e domain.GainEntry) []string {
	buyID := ""
	if e.BuyID != nil {
		buyID = *e.BuyID
	}

	buyDate := ""
	if e.BuyDate != nil {
		buyDate = formatDate(*e.BuyDate)
	}

	return []string{
		e.SellID,
		buyID,
		e.Token,
		e.Qty.String(),
		e.BuyPrice.String(),
		e.SellPrice.String(),
		e.Gain.String(),
		strconv.Itoa(e.HoldingDays),
		buyDate,
		formatDate(e.SellDate),
	}
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
