package transfer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeFetcher struct {
	body      string
	size      int64
	signedFor string
	openedURL string
	signErr   error
}

func (f *fakeFetcher) SignedDownloadURL(_ context.Context, storagePath string) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	f.signedFor = storagePath
	return "http://localhost:9000/bucket/" + storagePath + "?sig=1", nil
}

func (f *fakeFetcher) Open(_ context.Context, rawURL string) (io.ReadCloser, int64, error) {
	f.openedURL = rawURL
	return io.NopCloser(strings.NewReader(f.body)), f.size, nil
}

func TestDownloadWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	fetcher := &fakeFetcher{body: "transcoded", size: 10}
	var lastDone, lastTotal int64

	dest, err := Download(context.Background(), fetcher, "pl-1/p1/season-0.mp4", dir, func(done, total int64) {
		lastDone, lastTotal = done, total
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if dest != filepath.Join(dir, "season-0.mp4") {
		t.Fatalf("unexpected destination %s", dest)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "transcoded" {
		t.Fatalf("unexpected contents %q %v", data, err)
	}
	if fetcher.signedFor != "pl-1/p1/season-0.mp4" || !strings.Contains(fetcher.openedURL, "sig=1") {
		t.Fatalf("unexpected fetcher calls %+v", fetcher)
	}
	if lastDone != 10 || lastTotal != 10 {
		t.Fatalf("unexpected progress %d/%d", lastDone, lastTotal)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, got %d entries", len(entries))
	}
}

func TestDownloadShortBodyLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{body: "short", size: 100}
	if _, err := Download(context.Background(), fetcher, "a_out.mp4", dir, nil); err == nil {
		t.Fatal("expected short body error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no files after failure, got %d", len(entries))
	}
}

func TestDownloadPropagatesSignError(t *testing.T) {
	signErr := errors.New("File not found")
	_, err := Download(context.Background(), &fakeFetcher{signErr: signErr}, "missing.mp4", t.TempDir(), nil)
	if !errors.Is(err, signErr) {
		t.Fatalf("expected sign error, got %v", err)
	}
}

func TestDownloadRejectsEmptyPath(t *testing.T) {
	if _, err := Download(context.Background(), &fakeFetcher{}, " ", t.TempDir(), nil); err == nil {
		t.Fatal("expected error for empty storage path")
	}
}

func TestOpenUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holiday.mkv")
	if err := os.WriteFile(path, []byte("frames"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := OpenUpload(path)
	if err != nil {
		t.Fatalf("OpenUpload: %v", err)
	}
	defer f.Close()
	src := f.Source()
	if src.Name != "holiday.mkv" || src.Size != 6 {
		t.Fatalf("unexpected source %+v", src)
	}
	data, _ := io.ReadAll(src.Reader)
	if string(data) != "frames" {
		t.Fatalf("unexpected content %q", data)
	}

	if _, err := OpenUpload(filepath.Dir(path)); err == nil {
		t.Fatal("expected error for directory")
	}
	if _, err := OpenUpload(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
