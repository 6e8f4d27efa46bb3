package safefetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"montage/internal/logging"
)

// DownloadFile fetches rawURL into destPath. The transfer streams into a
// temporary file in the destination directory and is renamed into place only
// on success; every failure path removes the temporary file, so a partial
// download never appears at destPath. Returns the byte count written and the
// response content type.
func (f *Fetcher) DownloadFile(ctx context.Context, rawURL, destPath string, opts Options) (int64, string, error) {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", fmt.Errorf("create destination directory: %w", err)
	}

	result, err := f.Fetch(ctx, rawURL, opts)
	if err != nil {
		return 0, "", err
	}
	defer result.Body.Close()

	tmp, err := os.CreateTemp(dir, ".fetch-*")
	if err != nil {
		return 0, "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	written, err := io.Copy(tmp, result.Body)
	if err != nil {
		cleanup()
		return 0, "", fmt.Errorf("stream %s: %w", result.FinalURL, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return 0, "", fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, "", fmt.Errorf("finalize download: %w", err)
	}

	f.logger.Debug("downloaded remote asset",
		logging.String("url", result.FinalURL),
		logging.String("dest", destPath),
		logging.Int64("bytes", written))
	return written, result.ContentType, nil
}
