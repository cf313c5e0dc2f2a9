package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"transcoderctl/internal/api"
	"transcoderctl/internal/sandbox"
)

type cliTestEnv struct {
	backend    *sandbox.Server
	server     *httptest.Server
	client     *api.Client
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))

	backend := sandbox.New()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, base, srv.URL)

	return &cliTestEnv{
		backend:    backend,
		server:     srv,
		client:     client,
		configPath: configPath,
		baseDir:    base,
	}
}

func writeTestConfig(t *testing.T, path, base, baseURL string) {
	t.Helper()
	content := fmt.Sprintf(`[api]
base_url = %q
request_timeout = 5

[paths]
data_dir = %q
log_dir = %q
download_dir = %q

[ui]
page_size = 10
alert_dismiss_seconds = 1
submit_reset_ms = 10

[ledger]
enabled = true
path = %q

[logging]
format = "json"
level = "error"
`,
		baseURL,
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "downloads"),
		filepath.Join(base, "data", "ledger.db"),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return runCLIContext(ctx, env, args...)
}

func runCLIContext(ctx context.Context, env *cliTestEnv, args ...string) (string, string, error) {
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func submitPipelineJob(t *testing.T, env *cliTestEnv, id string) {
	t.Helper()
	_, err := env.client.SubmitJob(context.Background(), api.JobSubmission{
		JobID:        id,
		InputS3Path:  id + "_in.mp4",
		OutputS3Path: id + "_out.mp4",
		Pipeline:     "filesrc location={{input_file}} ! {{progress}} ! filesink location={{output_file}}",
	})
	if err != nil {
		t.Fatalf("submit %s: %v", id, err)
	}
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
