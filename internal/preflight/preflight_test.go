package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"transcoderctl/internal/api"
	"transcoderctl/internal/config"
)

type fakeBackend struct {
	err error
}

func (f fakeBackend) ListPresets(context.Context, api.PresetQuery) ([]api.Preset, error) {
	return nil, f.err
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDownloadDir_Missing(t *testing.T) {
	result := CheckDownloadDir(filepath.Join(t.TempDir(), "a", "b"))
	if !result.Passed {
		t.Fatalf("expected pass for creatable dir, got: %s", result.Detail)
	}
}

func TestCheckBackend(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		passed bool
	}{
		{"ok", nil, true},
		{"empty catalogue", &api.HTTPError{StatusCode: http.StatusNotFound, Body: `{"detail":"No presets found"}`}, true},
		{"unauthorized", &api.HTTPError{StatusCode: http.StatusUnauthorized}, false},
		{"down", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := CheckBackend(context.Background(), "http://backend", fakeBackend{err: tc.err})
			if result.Passed != tc.passed {
				t.Fatalf("passed = %v, want %v (%s)", result.Passed, tc.passed, result.Detail)
			}
		})
	}
}

func TestCheckLedger(t *testing.T) {
	cfg := config.Default()
	cfg.Ledger.Enabled = false
	if result := CheckLedger(&cfg); !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("unexpected disabled result %+v", result)
	}

	cfg.Ledger.Enabled = true
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "ledger.db")
	if result := CheckLedger(&cfg); !result.Passed {
		t.Fatalf("expected ledger to open, got: %s", result.Detail)
	}
}

func TestCheckNtfy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if result := CheckNtfy(context.Background(), srv.URL+"/topic"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckNtfy(context.Background(), "not a url"); result.Passed {
		t.Fatal("expected failure for invalid topic")
	}
}

func TestRunAll(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = base
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Ledger.Path = filepath.Join(base, "ledger.db")

	results := RunAll(context.Background(), &cfg, fakeBackend{})
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if n := Failed(results); n != 0 {
		t.Fatalf("expected all checks to pass, got %d failures: %+v", n, results)
	}

	if RunAll(context.Background(), nil, fakeBackend{}) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
