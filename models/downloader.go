package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ProgressFunc функция для отчёта о прогрессе (0-100)
type ProgressFunc func(progress float64)

// DownloadFile скачивает файл по URL во временный файл и атомарно
// переименовывает его в destPath
func DownloadFile(ctx context.Context, url, destPath string, onProgress ProgressFunc) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	fail := func(err error) error {
		out.Close()
		os.Remove(tmpPath)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("failed to download: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("bad status: %s", resp.Status))
	}

	reader := &progressReader{
		reader:     resp.Body,
		totalSize:  resp.ContentLength,
		onProgress: onProgress,
	}

	if _, err := io.Copy(out, reader); err != nil {
		return fail(fmt.Errorf("failed to write file: %w", err))
	}

	// Закрываем файл перед переименованием
	if err := out.Close(); err != nil {
		return fail(fmt.Errorf("failed to close file: %w", err))
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// progressReader обёртка для io.Reader с отслеживанием прогресса
type progressReader struct {
	reader       io.Reader
	totalSize    int64
	downloaded   int64
	onProgress   ProgressFunc
	lastReport   time.Time
	reportPeriod time.Duration
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)

		// Ограничиваем частоту отчётов
		now := time.Now()
		if pr.reportPeriod == 0 {
			pr.reportPeriod = 500 * time.Millisecond
		}

		if pr.onProgress != nil && pr.totalSize > 0 &&
			(now.Sub(pr.lastReport) >= pr.reportPeriod || pr.downloaded == pr.totalSize) {
			pr.lastReport = now
			pr.onProgress(float64(pr.downloaded) / float64(pr.totalSize) * 100)
		}
	}
	return n, err
}
