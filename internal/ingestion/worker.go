package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeovahfialho/capgains-ledger/pkg/logger"
	"go.uber.org/zap"
)

type WorkerPool struct {
	workers  int
	parser   *Parser
	loader   Loader
	jobQueue chan Job
	wg       sync.WaitGroup
}

// Job é um arquivo a ser lido; Index é a posição na lista original.
type Job struct {
	Index    int
	FilePath string
	Result   chan<- parsedFile
}

type parsedFile struct {
	index  int
	path   string
	result *ParseResult
	err    error
}

type JobResult struct {
	FilePath     string
	RecordsCount int64
	Inserted     int64
	ParseErrors  []error
	Error        error
}

func NewWorkerPool(workers int, parser *Parser, loader Loader) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		workers:  workers,
		parser:   parser,
		loader:   loader,
		jobQueue: make(chan Job, workers*2),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}

			parsed := wp.parseFile(ctx, job)
			logger.Debug("arquivo lido",
				zap.Int("worker", id),
				zap.String("file", job.FilePath),
				zap.Error(parsed.err))
			job.Result <- parsed
		}
	}
}

func (wp *WorkerPool) parseFile(ctx context.Context, job Job) parsedFile {
	parsed := parsedFile{index: job.Index, path: job.FilePath}

	file, err := os.Open(job.FilePath)
	if err != nil {
		parsed.err = fmt.Errorf("erro ao abrir arquivo: %w", err)
		return parsed
	}
	defer file.Close()

	result, err := wp.parser.ParseFile(ctx, file)
	if err != nil {
		parsed.err = fmt.Errorf("erro no parse: %w", err)
		return parsed
	}

	parsed.result = result
	return parsed
}

func (wp *WorkerPool) loadFile(ctx context.Context, parsed parsedFile) JobResult {
	if parsed.err != nil {
		return JobResult{FilePath: parsed.path, Error: parsed.err}
	}

	records := parsed.result.Records
	result := JobResult{
		FilePath:     parsed.path,
		RecordsCount: int64(len(records)),
		ParseErrors:  parsed.result.Errors,
	}

	inserted, err := wp.loader.LoadTrades(ctx, filepath.Base(parsed.path), records)
	if err != nil {
		result.Error = fmt.Errorf("erro ao carregar: %w", err)
		return result
	}

	result.Inserted = inserted
	return result
}

// ProcessFiles lê os arquivos em paralelo, mas carrega um de cada vez na
// ordem recebida: a sequência no banco desempata operações com a mesma data.
// Os resultados vêm na mesma ordem de files. Se o contexto for cancelado,
// devolve o que já foi carregado junto com ctx.Err().
func (wp *WorkerPool) ProcessFiles(ctx context.Context, files []string) ([]JobResult, error) {
	parsedCh := make(chan parsedFile, len(files))
	submitted := make(chan struct{})

	go func() {
		defer close(submitted)
		for i, file := range files {
			select {
			case <-ctx.Done():
				return
			case wp.jobQueue <- Job{Index: i, FilePath: file, Result: parsedCh}:
			}
		}
	}()

	pending := make(map[int]parsedFile)
	results := make([]JobResult, 0, len(files))

	for len(results) < len(files) {
		select {
		case <-ctx.Done():
			<-submitted
			return results, ctx.Err()
		case parsed := <-parsedCh:
			pending[parsed.index] = parsed
		}

		for {
			next, ok := pending[len(results)]
			if !ok {
				break
			}
			delete(pending, len(results))
			results = append(results, wp.loadFile(ctx, next))
		}
	}
	return results, nil
}
