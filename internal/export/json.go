package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
)

const JSONContentType = "application/json"

func FormJSONFilename(year int) string {
	return fmt.Sprintf("tax_form_%d.json", year)
}

func WriteFormJSON(w io.Writer, form domain.TaxForm) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(form); err != nil {
		return fmt.Errorf("erro ao serializar formulário: %w", err)
	}
	return nil
}
