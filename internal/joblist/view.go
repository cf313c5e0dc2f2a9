// Package joblist drives the jobs listing: one page of jobs sorted into
// playlist groups, with a live progress socket for every in-progress job on
// the page.
package joblist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"transcoderctl/internal/alerts"
	"transcoderctl/internal/api"
	"transcoderctl/internal/logging"
	"transcoderctl/internal/pager"
	"transcoderctl/internal/progress"
)

// JobSource is the subset of the API client the view needs.
type JobSource interface {
	ListJobs(ctx context.Context, skip, limit int) ([]api.Job, error)
	CancelJob(ctx context.Context, id string) (api.Job, error)
}

// Options configures a View.
type Options struct {
	Source   JobSource
	Dialer   progress.Dialer
	PageSize int
	Alerts   *alerts.Board
	Logger   *slog.Logger

	// OnChange fires after every applied page load and progress update.
	OnChange func()
	// OnLoad receives each applied page with the page number and size it
	// was fetched at, which differ from the requested page after a step back.
	OnLoad func(page, pageSize int, jobs []api.Job)
	// OnResult fires when a job reaches a terminal state, before the
	// follow-up refresh.
	OnResult func(result progress.ResultMessage)
}

// Row is a job merged with its live progress.
type Row struct {
	Job         api.Job
	Progress    float64
	HasProgress bool
	Live        bool
}

// View owns the jobs pager and the progress manager for one listing.
type View struct {
	source   JobSource
	pager    *pager.Pager[api.Job]
	progress *progress.Manager
	alerts   *alerts.Board
	logger   *slog.Logger
	opts     Options

	lifetime context.Context
	stop     context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewView wires a pager and progress manager around source.
func NewView(opts Options) (*View, error) {
	if opts.Source == nil {
		return nil, errors.New("job source is required")
	}
	v := &View{
		source: opts.Source,
		alerts: opts.Alerts,
		logger: logging.NewComponentLogger(opts.Logger, "joblist"),
		opts:   opts,
	}
	v.lifetime, v.stop = context.WithCancel(context.Background())

	p, err := pager.New(pager.Options[api.Job]{
		Fetch:           opts.Source.ListJobs,
		PageSize:        opts.PageSize,
		Arrange:         SortJobs,
		Notify:          v.notify,
		NotFoundMessage: "No jobs found",
		Logger:          opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	v.pager = p

	mgr, err := progress.NewManager(progress.Options{
		Dialer:     opts.Dialer,
		Logger:     opts.Logger,
		OnProgress: func(string, float64) { v.changed() },
		OnResult:   v.handleResult,
	})
	if err != nil {
		return nil, err
	}
	v.progress = mgr
	return v, nil
}

// Pager exposes paging controls. Call Refresh after moving pages.
func (v *View) Pager() *pager.Pager[api.Job] {
	return v.pager
}

// Progress exposes the subscription manager.
func (v *View) Progress() *progress.Manager {
	return v.progress
}

// Refresh loads the current page and reconciles progress subscriptions with
// the in-progress jobs on it. A load superseded by a newer one is not an
// error.
func (v *View) Refresh(ctx context.Context) error {
	err := v.pager.Load(ctx)
	if errors.Is(err, pager.ErrSuperseded) {
		return nil
	}
	if err != nil {
		return err
	}

	jobs := v.pager.Items()
	active := make([]string, 0, len(jobs))
	for _, job := range jobs {
		if job.Active() {
			active = append(active, job.JobID)
		}
	}
	if err := v.progress.Sync(ctx, active); err != nil {
		if errors.Is(err, progress.ErrClosed) {
			return nil
		}
		logging.WarnWithContext(v.logger, "progress subscriptions incomplete", "progress_sync_failed",
			logging.Int("active", len(active)),
			logging.Error(err),
		)
	}
	if v.opts.OnLoad != nil {
		v.opts.OnLoad(v.pager.Page(), v.pager.PageSize(), jobs)
	}
	v.changed()
	return nil
}

// Rows merges the current page with live progress.
func (v *View) Rows() []Row {
	jobs := v.pager.Items()
	snapshot := v.progress.Snapshot()
	rows := make([]Row, len(jobs))
	for i, job := range jobs {
		p, ok := snapshot[job.JobID]
		rows[i] = Row{
			Job:         job,
			Progress:    p,
			HasProgress: ok,
			Live:        v.progress.Connected(job.JobID),
		}
	}
	return rows
}

// Cancel cancels a queued job and refreshes the page.
func (v *View) Cancel(ctx context.Context, jobID string) error {
	ctx = logging.WithJobID(ctx, jobID)
	if _, err := v.source.CancelJob(ctx, jobID); err != nil {
		v.notify(alerts.Error(api.Message(err), false))
		return fmt.Errorf("cancel %s: %w", jobID, err)
	}
	logging.WithContext(ctx, v.logger).Info("job cancelled")
	v.notify(alerts.Success(fmt.Sprintf("Job %s cancelled", jobID)))
	return v.Refresh(ctx)
}

// Close closes every progress socket and cancels in-flight loads.
func (v *View) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.mu.Unlock()

	v.stop()
	v.pager.Close()
	err := v.progress.Close()
	v.wg.Wait()
	return err
}

func (v *View) handleResult(result progress.ResultMessage) {
	if v.opts.OnResult != nil {
		v.opts.OnResult(result)
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.wg.Add(1)
	v.mu.Unlock()

	go func() {
		defer v.wg.Done()
		if err := v.Refresh(v.lifetime); err != nil && !errors.Is(err, pager.ErrClosed) && !errors.Is(err, context.Canceled) {
			v.logger.Debug("refresh after result failed", logging.JobID(result.JobID), logging.Error(err))
		}
	}()
}

func (v *View) notify(a alerts.Alert) {
	if v.alerts != nil {
		v.alerts.Show(a)
	}
}

func (v *View) changed() {
	if v.opts.OnChange != nil {
		v.opts.OnChange()
	}
}
