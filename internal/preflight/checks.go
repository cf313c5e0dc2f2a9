package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"transcoderctl/internal/api"
	"transcoderctl/internal/config"
	"transcoderctl/internal/ledger"
)

// Backend is the API surface the backend check probes.
type Backend interface {
	ListPresets(ctx context.Context, q api.PresetQuery) ([]api.Preset, error)
}

// CheckBackend lists a single preset. An empty catalogue still proves the
// backend is up.
func CheckBackend(ctx context.Context, baseURL string, backend Backend) Result {
	const name = "Backend"
	if backend == nil {
		return Result{Name: name, Detail: "no client"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := backend.ListPresets(checkCtx, api.PresetQuery{Limit: 1})
	switch {
	case err == nil:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", baseURL)}
	case api.IsNotFound(err):
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable, no presets)", baseURL)}
	case api.StatusCode(err) == http.StatusUnauthorized || api.StatusCode(err) == http.StatusForbidden:
		return Result{Name: name, Detail: fmt.Sprintf("%s (auth failed: %s)", baseURL, api.Message(err))}
	}
	return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", baseURL, summarizeNetError(err))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDownloadDir accepts a missing download directory whose nearest
// existing ancestor is writable, since downloads create it on demand.
func CheckDownloadDir(path string) Result {
	const name = "Download directory"
	if _, err := os.Stat(path); err == nil {
		return CheckDirectoryAccess(name, path)
	}
	parent := filepath.Dir(path)
	for {
		if _, err := os.Stat(parent); err == nil {
			break
		}
		next := filepath.Dir(parent)
		if next == parent {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing parent)", path)}
		}
		parent = next
	}
	if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, parent, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (created on first download)", path)}
}

// CheckLedger opens and closes the local ledger.
func CheckLedger(cfg *config.Config) Result {
	const name = "Ledger"
	store, err := ledger.OpenConfig(cfg)
	if errors.Is(err, ledger.ErrDisabled) {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	path := store.Path()
	if err := store.Close(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (close: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (schema ok)", path)}
}

// CheckNtfy verifies the ntfy server behind topic answers HTTP.
func CheckNtfy(ctx context.Context, topic string) Result {
	const name = "Notifications"

	parsed, err := url.Parse(topic)
	if err != nil || parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("invalid topic URL %q", topic)}
	}
	root := (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/"}).String()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, root, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", parsed.Host, summarizeNetError(err))}
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("%s (server error %d)", parsed.Host, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", parsed.Host)}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "unreachable: " + opErr.Err.Error()
	}
	return api.Message(err)
}
