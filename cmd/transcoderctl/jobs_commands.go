package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transcoderctl/internal/api"
	"transcoderctl/internal/config"
	"transcoderctl/internal/joblist"
	"transcoderctl/internal/logging"
	"transcoderctl/internal/pager"
	"transcoderctl/internal/transfer"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect, watch, and manage transcoding jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsWatchCommand(ctx))
	jobsCmd.AddCommand(newJobsDownloadCommand(ctx))

	return jobsCmd
}

type pageFlags struct {
	page     int
	pageSize int
}

func (f *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, fmt.Sprintf("Items per page, one of %v (default from config)", config.PageSizes))
}

func (f *pageFlags) resolvedSize(cfg *config.Config) int {
	if f.pageSize > 0 {
		return f.pageSize
	}
	return cfg.UI.PageSize
}

// applyPageFlags moves p to the requested page and size.
func applyPageFlags[T any](p *pager.Pager[T], f pageFlags, cfg *config.Config) error {
	if err := p.SetPageSize(f.resolvedSize(cfg)); err != nil {
		return err
	}
	return p.SetPage(f.page)
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var flags pageFlags
	var offline bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of jobs grouped by playlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if offline {
				return listCachedJobs(cmd, ctx, jsonOut)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			board := ctx.alertBoard(cmd)
			defer board.Close()

			p, err := pager.New(pager.Options[api.Job]{
				Fetch:           client.ListJobs,
				PageSize:        cfg.UI.PageSize,
				Arrange:         joblist.SortJobs,
				Notify:          board.Show,
				NotFoundMessage: "No jobs found",
				Logger:          ctx.loggerValue(),
			})
			if err != nil {
				return err
			}
			defer p.Close()
			if err := applyPageFlags(p, flags, cfg); err != nil {
				return err
			}
			if err := p.Load(cmd.Context()); err != nil {
				return err
			}

			jobs := p.Items()
			if store, err := ctx.ledgerStore(); err != nil {
				ctx.loggerValue().Warn("ledger unavailable", logging.Error(err))
			} else if store != nil && len(jobs) > 0 {
				if err := store.SaveJobs(cmd.Context(), p.Page(), p.PageSize(), jobs); err != nil {
					ctx.loggerValue().Warn("failed to cache job page", logging.Error(err))
				}
			}

			if jsonOut {
				if jobs == nil {
					jobs = []api.Job{}
				}
				return writeJSON(cmd, jobs)
			}
			if len(jobs) == 0 {
				return nil
			}
			out := cmd.OutOrStdout()
			if p.Page() != flags.page {
				fmt.Fprintf(out, "Page %d is empty; showing page %d\n", flags.page, p.Page())
			}
			fmt.Fprint(out, renderTable(jobHeaders, buildJobRows(rowsFromJobs(jobs), shouldColorize(out)), jobAligns))
			fmt.Fprintf(out, "Page %d (%d per page)\n", p.Page(), p.PageSize())
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&offline, "offline", false, "Show the last page cached in the local ledger")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func listCachedJobs(cmd *cobra.Command, ctx *commandContext, jsonOut bool) error {
	store, err := ctx.ledgerStore()
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("ledger is disabled; enable [ledger] to use --offline")
	}
	snap, ok, err := store.CachedJobs(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOut {
		jobs := snap.Jobs
		if jobs == nil {
			jobs = []api.Job{}
		}
		return writeJSON(cmd, jobs)
	}
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, "No cached jobs")
		return nil
	}
	fmt.Fprint(out, renderTable(jobHeaders, buildJobRows(rowsFromJobs(snap.Jobs), shouldColorize(out)), jobAligns))
	fmt.Fprintf(out, "Cached page %d (%d per page) fetched %s\n",
		snap.Page, snap.PageSize, snap.FetchedAt.Local().Format(timeLayout))
	return nil
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			job, err := client.GetJob(cmd.Context(), args[0])
			if err != nil {
				return jobError(args[0], err)
			}
			if jsonOut {
				return writeJSON(cmd, job)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderDetails(jobDetails(job, shouldColorize(out))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func jobDetails(job api.Job, colorize bool) [][2]string {
	pairs := [][2]string{
		{"Job ID", job.JobID},
		{"State", renderState(job.State, colorize)},
		{"Input", valueOrDash(job.InputS3Path)},
		{"Output", valueOrDash(job.OutputS3Path)},
		{"Preset", valueOrDash(job.PresetName())},
		{"Playlist", playlistLabel(job)},
		{"Created", formatTimestamp(job.CreatedAt)},
		{"Updated", formatTimestamp(job.UpdatedAt)},
		{"Started", formatTimestamp(job.TranscodeStartedAt)},
		{"Completed", formatTimestamp(job.TranscodeCompletedAt)},
		{"Duration", formatDuration(job.Duration())},
	}
	if job.Error != "" {
		pairs = append(pairs, [2]string{"Error", strings.TrimSpace(job.ErrorType + " " + job.Error)})
	}
	return pairs
}

func jobError(id string, err error) error {
	if api.IsNotFound(err) {
		return fmt.Errorf("job %s not found", id)
	}
	return fmt.Errorf("job %s: %s", id, api.Message(err))
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			id := args[0]
			job, err := client.GetJob(cmd.Context(), id)
			if err != nil {
				return jobError(id, err)
			}
			if !job.Cancellable() {
				return fmt.Errorf("job %s is %s; only queued jobs can be cancelled", id, stateLabel(job.State))
			}
			if _, err := client.CancelJob(cmd.Context(), id); err != nil {
				return jobError(id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", id)
			return nil
		},
	}
}

func newJobsDownloadCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download a completed job's output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			id := args[0]
			job, err := client.GetJob(cmd.Context(), id)
			if err != nil {
				return jobError(id, err)
			}
			if job.State != api.StateCompleted {
				return fmt.Errorf("job %s is %s; only completed jobs can be downloaded", id, stateLabel(job.State))
			}

			dir := cfg.Paths.DownloadDir
			if strings.TrimSpace(outputDir) != "" {
				if dir, err = config.ExpandPath(outputDir); err != nil {
					return err
				}
			}
			bar := newTransferBar(cmd.ErrOrStderr(), job.OutputS3Path, 0)
			dest, err := transfer.Download(cmd.Context(), client, job.OutputS3Path, dir, bar.setWithTotal)
			bar.finish(err)
			if err != nil {
				return fmt.Errorf("download %s: %s", id, api.Message(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s to %s\n", id, dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Destination directory (default [paths] download_dir)")
	return cmd
}
