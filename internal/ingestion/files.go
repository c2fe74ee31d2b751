package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
)

// ExpandPaths resolve curingas (data/*.csv) mantendo a ordem dos argumentos.
func ExpandPaths(patterns []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("padrão inválido %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("nenhum arquivo encontrado para %q", pattern)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			paths = append(paths, m)
		}
	}

	return paths, nil
}

// ReadRecords lê os arquivos em sequência e concatena os registros na ordem
// dos arquivos, que é a ordem usada para desempate no cálculo FIFO.
func ReadRecords(ctx context.Context, parser *Parser, paths []string) ([]domain.TradeRecord, []error, error) {
	var records []domain.TradeRecord
	var rowErrors []error

	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("erro ao abrir arquivo: %w", err)
		}

		result, err := parser.ParseFile(ctx, file)
		file.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("erro no parse de %s: %w", path, err)
		}

		records = append(records, result.Records...)
		for _, e := range result.Errors {
			rowErrors = append(rowErrors, fmt.Errorf("%s: %w", filepath.Base(path), e))
		}
	}

	return records, rowErrors, nil
}

// FileSource lê o histórico direto de arquivos CSV, sem banco. Linhas com
// erro de leitura são descartadas e contadas em Skipped.
type FileSource struct {
	parser  *Parser
	paths   []string
	Skipped int
}

func NewFileSource(parser *Parser, paths []string) *FileSource {
	return &FileSource{parser: parser, paths: paths}
}

func (s *FileSource) List(ctx context.Context) ([]domain.TradeRecord, error) {
	records, rowErrors, err := ReadRecords(ctx, s.parser, s.paths)
	if err != nil {
		return nil, err
	}
	s.Skipped = len(rowErrors)
	return records, nil
}
