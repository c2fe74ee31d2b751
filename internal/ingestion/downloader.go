package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jeovahfialho/capgains-ledger/pkg/logger"
	"go.uber.org/zap"
)

// Downloader baixa exportações de histórico de operações (CSV) de um
// armazenamento de recibos exposto por HTTP.
type Downloader struct {
	baseURL    string
	httpClient *http.Client
	workers    int
}

func NewDownloader(baseURL string, workers int) *Downloader {
	if workers <= 0 {
		workers = 1
	}

	return &Downloader{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		workers: workers,
	}
}

func (d *Downloader) resolve(name string) (string, string, error) {
	target := name
	if !strings.HasPrefix(name, "http://") && !strings.HasPrefix(name, "https://") {
		if d.baseURL == "" {
			return "", "", fmt.Errorf("EXPORT_BASE_URL não configurada para %q", name)
		}
		target = d.baseURL + "/" + strings.TrimLeft(name, "/")
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", "", fmt.Errorf("url inválida %q: %w", target, err)
	}

	filename := path.Base(u.Path)
	if filename == "" || filename == "/" || filename == "." {
		return "", "", fmt.Errorf("url sem nome de arquivo: %s", target)
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		filename += ".csv"
	}

	return target, filename, nil
}

// DownloadFile baixa uma exportação para outputDir. Arquivos já existentes
// não são baixados de novo.
func (d *Downloader) DownloadFile(ctx context.Context, name, outputDir string) (string, error) {
	target, filename, err := d.resolve(name)
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(outputDir, filename)

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("erro ao criar diretório: %w", err)
	}

	if _, err := os.Stat(outputPath); err == nil {
		logger.Info("arquivo já existe", zap.String("file", filename))
		return outputPath, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("erro ao criar request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("erro ao fazer download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status code: %d para URL: %s", resp.StatusCode, target)
	}

	tempFile := outputPath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("erro ao criar arquivo: %w", err)
	}

	written, err := io.Copy(file, resp.Body)
	file.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("erro ao salvar arquivo: %w", err)
	}

	if err := os.Rename(tempFile, outputPath); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("erro ao renomear arquivo: %w", err)
	}

	logger.Info("exportação baixada",
		zap.String("file", filename),
		zap.Int64("bytes", written))

	return outputPath, nil
}

// DownloadAll baixa as exportações com no máximo `workers` downloads
// simultâneos. Os caminhos voltam na mesma ordem de names; falhas ficam em
// errs e deixam o caminho vazio.
func (d *Downloader) DownloadAll(ctx context.Context, names []string, outputDir string) ([]string, []error) {
	paths := make([]string, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	sem := make(chan struct{}, d.workers)

	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()

			path, err := d.DownloadFile(ctx, name, outputDir)
			if err != nil {
				errs[i] = fmt.Errorf("erro ao baixar %s: %w", name, err)
				return
			}
			paths[i] = path
		}(i, name)
	}

	wg.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}

	return paths, failed
}
