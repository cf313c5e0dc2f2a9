package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"transcoderctl/internal/api"
	"transcoderctl/internal/ledger"
	"transcoderctl/internal/logging"
	"transcoderctl/internal/submission"
	"transcoderctl/internal/transfer"
)

type submitResult struct {
	JobID        string `json:"job_id"`
	InputS3Path  string `json:"input_s3_path"`
	OutputS3Path string `json:"output_s3_path"`
	PresetID     string `json:"preset_id,omitempty"`
	Pipeline     string `json:"pipeline,omitempty"`
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		jobID        string
		generateID   bool
		filePath     string
		presetRef    string
		pipeline     string
		pipelineFile string
		outputPath   string
		jsonOut      bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Upload a source file and submit a transcoding job",
		Long: "Validate the job id, upload the source file as <job-id>_in.<ext>, then submit the job\n" +
			"with either a preset (--preset, by id or exact name) or a literal pipeline.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if generateID {
				if strings.TrimSpace(jobID) != "" {
					return errors.New("use either --id or --generate-id")
				}
				jobID = uuid.NewString()
			}
			if strings.TrimSpace(jobID) == "" || strings.TrimSpace(filePath) == "" {
				return errors.New("--id (or --generate-id) and --file are required")
			}
			if pipelineFile != "" {
				data, err := os.ReadFile(pipelineFile)
				if err != nil {
					return fmt.Errorf("read pipeline file: %w", err)
				}
				pipeline = strings.TrimSpace(string(data))
			}
			if (presetRef == "") == (strings.TrimSpace(pipeline) == "") {
				return errors.New("exactly one of --preset or --pipeline is required")
			}

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			logger := ctx.loggerValue()
			board := ctx.alertBoard(cmd)
			defer board.Close()

			draft := submission.NewJobDraft(client, submission.Options{
				Alerts:     board,
				ResetDelay: cfg.SubmitResetDelay(),
				Logger:     logger,
			})
			defer draft.Reset()

			runCtx := logging.WithCorrelationID(cmd.Context(), uuid.NewString())
			if _, err := draft.ValidateID(runCtx, jobID); err != nil {
				return err
			}

			if presetRef != "" {
				preset, err := resolvePreset(runCtx, client, presetRef)
				if err != nil {
					return err
				}
				draft.SelectPreset(preset)
			} else {
				draft.UsePipeline(pipeline)
			}

			source, err := transfer.OpenUpload(filePath)
			if err != nil {
				return err
			}
			defer source.Close()

			bar := newTransferBar(cmd.ErrOrStderr(), submission.UploadName(jobID, source.Name), source.Size)
			inputPath, err := draft.Upload(runCtx, source.Source(), bar.set)
			bar.finish(err)
			if err != nil {
				return err
			}

			switch {
			case strings.TrimSpace(outputPath) != "":
				draft.SetOutputPath(outputPath)
			case presetRef == "":
				ext := strings.TrimPrefix(path.Ext(inputPath), ".")
				draft.SetOutputPath(submission.OutputPath(inputPath, ext, ext))
			}

			resp, err := draft.Submit(runCtx)
			if err != nil {
				if msg := draft.View().Error; msg != "" {
					return fmt.Errorf("submit job %s: %s", jobID, msg)
				}
				return err
			}

			view := draft.View()
			result := submitResult{
				JobID:        resp.JobID,
				InputS3Path:  view.InputPath,
				OutputS3Path: view.OutputPath,
				Pipeline:     view.Pipeline,
			}
			if view.Preset != nil {
				result.PresetID = view.Preset.PresetID
			}
			recordSubmission(runCtx, ctx, ledger.Submission{
				Kind:         ledger.KindJob,
				Name:         result.JobID,
				InputS3Path:  result.InputS3Path,
				OutputS3Path: result.OutputS3Path,
				PresetID:     result.PresetID,
				Pipeline:     result.Pipeline,
			})

			if jsonOut {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submitted job %s\n", result.JobID)
			fmt.Fprintf(out, "  input:  %s\n", result.InputS3Path)
			fmt.Fprintf(out, "  output: %s\n", result.OutputS3Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobID, "id", "", "Job id")
	cmd.Flags().BoolVar(&generateID, "generate-id", false, "Generate a random job id")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Source media file to upload")
	cmd.Flags().StringVarP(&presetRef, "preset", "p", "", "Preset id or exact name")
	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Literal pipeline instead of a preset")
	cmd.Flags().StringVar(&pipelineFile, "pipeline-file", "", "Read the literal pipeline from a file")
	cmd.Flags().StringVarP(&outputPath, "output-path", "o", "", "Override the derived output path")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// resolvePreset looks ref up as an id first and then as an exact name.
func resolvePreset(ctx context.Context, client *api.Client, ref string) (api.Preset, error) {
	preset, err := client.GetPreset(ctx, ref)
	if err == nil {
		return preset, nil
	}
	if !api.IsNotFound(err) {
		return api.Preset{}, fmt.Errorf("look up preset %q: %s", ref, api.Message(err))
	}
	for skip := 0; ; skip += api.MaxPageLimit {
		page, err := client.ListPresets(ctx, api.PresetQuery{Skip: skip, Limit: api.MaxPageLimit})
		if api.IsNotFound(err) {
			break
		}
		if err != nil {
			return api.Preset{}, fmt.Errorf("list presets: %s", api.Message(err))
		}
		for _, p := range page {
			if p.Name == ref {
				return p, nil
			}
		}
		if len(page) < api.MaxPageLimit {
			break
		}
	}
	return api.Preset{}, fmt.Errorf("preset %q not found", ref)
}

// recordSubmission appends to the ledger when it is enabled. Failures are
// logged and do not fail the command.
func recordSubmission(runCtx context.Context, ctx *commandContext, sub ledger.Submission) {
	store, err := ctx.ledgerStore()
	if err != nil {
		ctx.loggerValue().Warn("ledger unavailable", logging.Error(err))
		return
	}
	if store == nil {
		return
	}
	if _, err := store.RecordSubmission(runCtx, sub); err != nil {
		ctx.loggerValue().Warn("failed to record submission", logging.Error(err))
	}
}
