package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInsufficientSpace is returned when the destination cannot hold the file.
var ErrInsufficientSpace = errors.New("insufficient disk space")

// spaceMargin is kept free beyond the file itself.
const spaceMargin = 64 << 20

// Fetcher resolves and opens presigned downloads.
type Fetcher interface {
	SignedDownloadURL(ctx context.Context, storagePath string) (string, error)
	Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error)
}

// ProgressFunc receives bytes written so far and the total, which is -1
// when unknown.
type ProgressFunc func(done, total int64)

// Download fetches storagePath into dir and returns the written file path.
func Download(ctx context.Context, fetcher Fetcher, storagePath, dir string, onProgress ProgressFunc) (string, error) {
	storagePath = strings.TrimSpace(storagePath)
	if storagePath == "" {
		return "", errors.New("storage path is required")
	}
	name := path.Base(storagePath)
	if name == "." || name == "/" {
		return "", fmt.Errorf("storage path %q has no file name", storagePath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	signed, err := fetcher.SignedDownloadURL(ctx, storagePath)
	if err != nil {
		return "", err
	}
	body, size, err := fetcher.Open(ctx, signed)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if size > 0 {
		free, err := freeBytes(dir)
		if err == nil && free >= 0 && uint64(size)+spaceMargin > uint64(free) {
			return "", fmt.Errorf("%w: need %d bytes in %s, %d available", ErrInsufficientSpace, size, dir, free)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	written, err := io.Copy(tmp, &progressReader{r: body, total: size, onProgress: onProgress})
	if err != nil {
		cleanup()
		return "", fmt.Errorf("download %s: %w", storagePath, err)
	}
	if size > 0 && written != size {
		cleanup()
		return "", fmt.Errorf("download %s: short body: %d of %d bytes", storagePath, written, size)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close %s: %w", tmpPath, err)
	}

	dest := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("move download into place: %w", err)
	}
	return dest, nil
}

type progressReader struct {
	r          io.Reader
	done       int64
	total      int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.done, p.total)
		}
	}
	return n, err
}
