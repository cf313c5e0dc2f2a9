package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"transcoderctl/internal/api"
	"transcoderctl/internal/ledger"
	"transcoderctl/internal/logging"
	"transcoderctl/internal/notifications"
	"transcoderctl/internal/pager"
	"transcoderctl/internal/submission"
	"transcoderctl/internal/transfer"
)

func newPlaylistsCommand(ctx *commandContext) *cobra.Command {
	playlistsCmd := &cobra.Command{
		Use:   "playlists",
		Short: "Browse playlists and fan one source out to several presets",
	}

	playlistsCmd.AddCommand(newPlaylistsListCommand(ctx))
	playlistsCmd.AddCommand(newPlaylistsCreateCommand(ctx))

	return playlistsCmd
}

func newPlaylistsListCommand(ctx *commandContext) *cobra.Command {
	var flags pageFlags
	var name string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of playlists",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			p, err := pager.New(pager.Options[api.PlaylistSummary]{
				Fetch: func(c context.Context, skip, limit int) ([]api.PlaylistSummary, error) {
					return client.ListPlaylists(c, api.PlaylistQuery{Name: name, Skip: skip, Limit: limit})
				},
				PageSize:        cfg.UI.PageSize,
				Notify:          board.Show,
				NotFoundMessage: "No playlists found",
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

			items := p.Items()
			if jsonOut {
				if items == nil {
					items = []api.PlaylistSummary{}
				}
				return writeJSON(cmd, items)
			}
			if len(items) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, pl := range items {
				rows = append(rows, []string{
					pl.PlaylistID,
					pl.Name,
					strconv.Itoa(len(pl.Jobs)),
					formatTimestamp(pl.CreatedAt),
					formatTimestamp(pl.UpdatedAt),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(
				[]string{"Playlist ID", "Name", "Jobs", "Created", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "Page %d (%d per page)\n", p.Page(), p.PageSize())
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "Only the playlist with this name")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newPlaylistsCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		name       string
		filePath   string
		presetRefs []string
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Upload a source once and create one job per preset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(name) == "" || strings.TrimSpace(filePath) == "" {
				return errors.New("--name and --file are required")
			}
			if len(presetRefs) == 0 {
				return errors.New("at least one --preset is required")
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			board := ctx.alertBoard(cmd)
			defer board.Close()

			draft := submission.NewPlaylistDraft(client, submission.Options{
				Alerts:     board,
				ResetDelay: cfg.SubmitResetDelay(),
				Logger:     ctx.loggerValue(),
			})
			defer draft.Reset()

			runCtx := cmd.Context()
			if _, err := draft.ValidateName(runCtx, name); err != nil {
				return err
			}
			for _, ref := range presetRefs {
				preset, err := resolvePreset(runCtx, client, ref)
				if err != nil {
					return err
				}
				draft.AddPreset(preset.PresetID)
			}

			source, err := transfer.OpenUpload(filePath)
			if err != nil {
				return err
			}
			defer source.Close()

			bar := newTransferBar(cmd.ErrOrStderr(), submission.UploadName(draft.View().Name, source.Name), source.Size)
			_, err = draft.Upload(runCtx, source.Source(), bar.set)
			bar.finish(err)
			if err != nil {
				return err
			}

			presetIDs := draft.View().Presets
			created, err := draft.Submit(runCtx)
			if err != nil {
				if msg := draft.View().Error; msg != "" {
					return fmt.Errorf("create playlist %s: %s", name, msg)
				}
				return err
			}

			recordSubmission(runCtx, ctx, ledger.Submission{
				Kind:        ledger.KindPlaylist,
				Name:        strings.TrimSpace(name),
				InputS3Path: created.InputS3Path,
				PresetID:    strings.Join(presetIDs, ","),
				JobIDs:      created.Jobs,
			})

			if err := notifications.NewService(cfg).NotifyPlaylistSubmitted(runCtx, strings.TrimSpace(name), len(created.Jobs)); err != nil {
				ctx.loggerValue().Warn("playlist notification failed", logging.Error(err))
			}

			if jsonOut {
				return writeJSON(cmd, created)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created playlist %s (%s) with %d jobs\n", strings.TrimSpace(name), created.PlaylistID, len(created.Jobs))
			for _, id := range created.Jobs {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Playlist name")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Source media file to upload")
	cmd.Flags().StringSliceVarP(&presetRefs, "preset", "p", nil, "Preset id or exact name (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
