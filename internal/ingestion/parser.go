package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jeovahfialho/capgains-ledger/internal/domain"
)

var ErrMissingColumns = errors.New("cabeçalho sem as colunas action e date")

// idNamespace gera ids determinísticos para linhas sem coluna id, assim a
// mesma exportação carregada duas vezes produz os mesmos ids.
var idNamespace = uuid.MustParse("5b0c1d6e-8f0a-4c58-9a43-2f7e0d6c1b90")

type Parser struct {
	batchSize int
	workers   int
	comma     rune
}

func NewParser(batchSize, workers int, comma rune) *Parser {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if workers <= 0 {
		workers = 1
	}
	if comma == 0 {
		comma = ','
	}
	return &Parser{
		batchSize: batchSize,
		workers:   workers,
		comma:     comma,
	}
}

type ParseResult struct {
	Records []domain.TradeRecord
	Errors  []error
}

type columns struct {
	id, action, token, quantity, price, date int
}

type row struct {
	seq    int
	line   int
	fields []string
}

type parsedRow struct {
	seq    int
	record domain.TradeRecord
}

type batch struct {
	rows   []parsedRow
	errors []error
}

// ParseFile lê um CSV com cabeçalho (id,action,token,quantity,pricePerUnit,date,
// em qualquer ordem) e devolve os registros na ordem do arquivo.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) (*ParseResult, error) {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = p.comma
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err == io.EOF {
		return &ParseResult{Records: []domain.TradeRecord{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao ler cabeçalho: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	jobs := make(chan row, p.workers*2)
	results := make(chan *batch, p.workers)
	readDone := make(chan readOutcome, 1)

	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, cols, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)

		var outcome readOutcome
		var errs []error
		defer func() {
			outcome.rowErrs = errors.Join(errs...)
			readDone <- outcome
		}()

		for seq := 0; ctx.Err() == nil; {
			fields, err := csvReader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				var parseErr *csv.ParseError
				if !errors.As(err, &parseErr) {
					outcome.fatal = err
					return
				}
				errs = append(errs, fmt.Errorf("erro de leitura: %w", err))
				continue
			}
			line, _ := csvReader.FieldPos(0)

			select {
			case <-ctx.Done():
				return
			case jobs <- row{seq: seq, line: line, fields: fields}:
				seq++
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var rows []parsedRow
	finalResult := &ParseResult{
		Errors: make([]error, 0),
	}

	for result := range results {
		rows = append(rows, result.rows...)
		finalResult.Errors = append(finalResult.Errors, result.errors...)
	}

	outcome := <-readDone
	if outcome.fatal != nil {
		return nil, fmt.Errorf("erro de leitura: %w", outcome.fatal)
	}
	if outcome.rowErrs != nil {
		finalResult.Errors = append(finalResult.Errors, outcome.rowErrs)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	finalResult.Records = make([]domain.TradeRecord, len(rows))
	for i, r := range rows {
		finalResult.Records[i] = r.record
	}

	return finalResult, nil
}

// readOutcome separa linhas malformadas, que só viram avisos, da falha do
// leitor, que interrompe o arquivo.
type readOutcome struct {
	rowErrs error
	fatal   error
}

func (p *Parser) worker(ctx context.Context, cols columns, jobs <-chan row,
	results chan<- *batch, wg *sync.WaitGroup) {

	defer wg.Done()

	current := &batch{rows: make([]parsedRow, 0, p.batchSize)}

	flush := func() {
		if len(current.rows) > 0 || len(current.errors) > 0 {
			results <- current
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case job, ok := <-jobs:
			if !ok {
				flush()
				return
			}

			record, err := parseRecord(cols, job)
			if err != nil {
				current.errors = append(current.errors, err)
				continue
			}

			current.rows = append(current.rows, parsedRow{seq: job.seq, record: record})

			if len(current.rows) >= p.batchSize {
				results <- current
				current = &batch{rows: make([]parsedRow, 0, p.batchSize)}
			}
		}
	}
}

func mapColumns(header []string) (columns, error) {
	cols := columns{id: -1, action: -1, token: -1, quantity: -1, price: -1, date: -1}

	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch name {
		case "id":
			cols.id = i
		case "action", "type":
			cols.action = i
		case "token", "symbol", "asset":
			cols.token = i
		case "quantity", "qty", "amount":
			cols.quantity = i
		case "priceperunit", "price_per_unit", "price":
			cols.price = i
		case "date", "timestamp", "time":
			cols.date = i
		}
	}

	if cols.action < 0 || cols.date < 0 {
		return cols, ErrMissingColumns
	}
	return cols, nil
}

func field(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

// parseRecord não converte números nem datas: a leniência fica no taxlot.
func parseRecord(cols columns, r row) (domain.TradeRecord, error) {
	if len(r.fields) <= cols.action {
		return domain.TradeRecord{}, fmt.Errorf("linha %d: registro incompleto: %v", r.line, r.fields)
	}

	id := field(r.fields, cols.id)
	if id == "" {
		id = uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%d|%s", r.line, strings.Join(r.fields, "|")))).String()
	}

	return domain.TradeRecord{
		ID:           id,
		Action:       field(r.fields, cols.action),
		Token:        field(r.fields, cols.token),
		Quantity:     domain.LooseValue(field(r.fields, cols.quantity)),
		PricePerUnit: domain.LooseValue(field(r.fields, cols.price)),
		Date:         domain.LooseValue(field(r.fields, cols.date)),
	}, nil
}
