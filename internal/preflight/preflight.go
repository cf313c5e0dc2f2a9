package preflight

import (
	"context"

	"transcoderctl/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check for cfg against backend.
func RunAll(ctx context.Context, cfg *config.Config, backend Backend) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckBackend(ctx, cfg.API.BaseURL, backend),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDownloadDir(cfg.Paths.DownloadDir),
		CheckLedger(cfg),
	}
	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	} else {
		results = append(results, Result{Name: "Notifications", Passed: true, Detail: "Disabled"})
	}
	return results
}

// Failed counts results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
