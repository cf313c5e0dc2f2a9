package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gofrs/flock"
	bars "github.com/jedib0t/go-pretty/v6/progress"
	"github.com/spf13/cobra"

	"transcoderctl/internal/api"
	"transcoderctl/internal/joblist"
	"transcoderctl/internal/logging"
	"transcoderctl/internal/notifications"
	"transcoderctl/internal/progress"
)

func newJobsWatchCommand(ctx *commandContext) *cobra.Command {
	var flags pageFlags
	var interval time.Duration
	var untilIdle bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live progress for the jobs on a page",
		Long: "Follow live progress for the jobs on a page. In-progress jobs stream over one\n" +
			"progress socket each; the page is re-fetched when a job finishes and every --interval.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.loggerValue()

			lock := flock.New(cfg.WatchLockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire watch lock: %w", err)
			}
			if !ok {
				return fmt.Errorf("another jobs watch is already running (lock %s)", cfg.WatchLockPath())
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Warn("failed to release watch lock", logging.Error(err))
				}
			}()

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			store, err := ctx.ledgerStore()
			if err != nil {
				logger.Warn("ledger unavailable", logging.Error(err))
			}
			board := ctx.alertBoard(cmd)
			defer board.Close()

			out := cmd.OutOrStdout()
			renderer := newWatchRenderer(out)
			defer renderer.stop()

			notifier := notifications.NewService(cfg)
			var pending sync.WaitGroup
			defer pending.Wait()

			changes := make(chan struct{}, 1)
			notifyChange := func() {
				select {
				case changes <- struct{}{}:
				default:
				}
			}

			view, err := joblist.NewView(joblist.Options{
				Source:   client,
				Dialer:   newProgressDialer(cfg.API.BaseURL, cfg.API.APIToken),
				PageSize: flags.resolvedSize(cfg),
				Alerts:   board,
				Logger:   logger,
				OnChange: notifyChange,
				OnLoad: func(page, pageSize int, jobs []api.Job) {
					if store == nil || len(jobs) == 0 {
						return
					}
					if err := store.SaveJobs(cmd.Context(), page, pageSize, jobs); err != nil {
						logger.Debug("failed to cache job page", logging.Error(err))
					}
				},
				OnResult: func(result progress.ResultMessage) {
					renderer.finished(result)
					pending.Add(1)
					go func() {
						defer pending.Done()
						if err := notifyResult(context.WithoutCancel(cmd.Context()), notifier, result); err != nil {
							logger.Warn("job notification failed", logging.JobID(result.JobID), logging.Error(err))
						}
					}()
				},
			})
			if err != nil {
				return err
			}
			defer view.Close()
			if err := applyPageFlags(view.Pager(), flags, cfg); err != nil {
				return err
			}
			if err := view.Refresh(cmd.Context()); err != nil {
				return err
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				rows := view.Rows()
				renderer.update(rows)
				if untilIdle && idle(rows) {
					fmt.Fprintln(out, "No queued or in-progress jobs on this page")
					return nil
				}
				select {
				case <-cmd.Context().Done():
					return nil
				case <-changes:
				case <-ticker.C:
					if err := view.Refresh(cmd.Context()); err != nil && !errors.Is(err, cmd.Context().Err()) {
						logger.Debug("periodic refresh failed", logging.Error(err))
					}
				}
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Re-fetch the page at this interval")
	cmd.Flags().BoolVar(&untilIdle, "until-idle", false, "Exit once no job on the page is queued or in progress")
	return cmd
}

func notifyResult(ctx context.Context, notifier notifications.Service, result progress.ResultMessage) error {
	if result.Status == api.StateCompleted {
		return notifier.NotifyJobCompleted(ctx, result.JobID, result.OutputS3Path)
	}
	reason := result.Error
	switch {
	case result.ErrorType != "" && reason != "":
		reason = result.ErrorType + ": " + reason
	case result.ErrorType != "":
		reason = result.ErrorType
	}
	return notifier.NotifyJobFailed(ctx, result.JobID, result.Status, reason)
}

func newProgressDialer(baseURL, token string) progress.Dialer {
	return progress.NewWebsocketDialer(baseURL, token)
}

func idle(rows []joblist.Row) bool {
	for _, row := range rows {
		if row.Job.State == api.StateQueued || row.Job.State == api.StateInProgress {
			return false
		}
	}
	return true
}

// watchRenderer shows progress as bars on a terminal and as change lines
// otherwise.
type watchRenderer interface {
	update(rows []joblist.Row)
	finished(result progress.ResultMessage)
	stop()
}

func newWatchRenderer(out io.Writer) watchRenderer {
	if shouldColorize(out) {
		return newBarRenderer(out)
	}
	return &lineRenderer{out: out, last: make(map[string]string)}
}

type lineRenderer struct {
	mu   sync.Mutex
	out  io.Writer
	last map[string]string
}

func (r *lineRenderer) update(rows []joblist.Row) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		pct := formatProgress(row)
		if row.HasProgress {
			pct = fmt.Sprintf("%.0f%%", row.Progress)
		}
		line := fmt.Sprintf("%s %s %s", row.Job.JobID, stateLabel(row.Job.State), pct)
		if r.last[row.Job.JobID] == line {
			continue
		}
		r.last[row.Job.JobID] = line
		fmt.Fprintln(r.out, line)
	}
}

func (r *lineRenderer) finished(result progress.ResultMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, resultLine(result))
}

func (r *lineRenderer) stop() {}

func resultLine(result progress.ResultMessage) string {
	line := fmt.Sprintf("Job %s finished: %s", result.JobID, stateLabel(result.Status))
	if result.Error != "" {
		line += " (" + result.Error + ")"
	}
	return line
}

type barRenderer struct {
	out      io.Writer
	mu       sync.Mutex
	writer   bars.Writer
	trackers map[string]*bars.Tracker
}

func newBarRenderer(out io.Writer) *barRenderer {
	pw := bars.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(200 * time.Millisecond)
	pw.SetStyle(bars.StyleDefault)
	pw.SetSortBy(bars.SortByMessage)
	pw.Style().Visibility.Percentage = true
	go pw.Render()
	return &barRenderer{out: out, writer: pw, trackers: make(map[string]*bars.Tracker)}
}

func (r *barRenderer) update(rows []joblist.Row) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		if !row.HasProgress && row.Job.State != api.StateInProgress {
			continue
		}
		tracker, ok := r.trackers[row.Job.JobID]
		if !ok {
			tracker = &bars.Tracker{Message: row.Job.JobID, Total: 100, Units: bars.UnitsDefault}
			r.trackers[row.Job.JobID] = tracker
			r.writer.AppendTracker(tracker)
		}
		if row.HasProgress && !tracker.IsDone() {
			tracker.SetValue(int64(row.Progress))
		}
	}
}

func (r *barRenderer) finished(result progress.ResultMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tracker, ok := r.trackers[result.JobID]
	if !ok {
		return
	}
	if result.Status == api.StateCompleted {
		tracker.MarkAsDone()
	} else {
		tracker.UpdateMessage(result.JobID + " " + stateLabel(result.Status))
		tracker.MarkAsErrored()
	}
}

func (r *barRenderer) stop() {
	r.writer.Stop()
}
