package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"transcoderctl/internal/api"
	"transcoderctl/internal/pager"
	"transcoderctl/internal/presets"
)

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "Browse and author encoding presets",
	}

	presetsCmd.AddCommand(newPresetsListCommand(ctx))
	presetsCmd.AddCommand(newPresetsShowCommand(ctx))
	presetsCmd.AddCommand(newPresetsCreateCommand(ctx))
	presetsCmd.AddCommand(newPresetsDeleteCommand(ctx))

	return presetsCmd
}

var presetHeaders = []string{"Preset ID", "Name", "In", "Out", "Resolution", "Video", "Audio"}

var presetAligns = []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}

func presetRow(p api.Preset) []string {
	return []string{
		p.PresetID,
		p.Name,
		valueOrDash(p.InputType),
		valueOrDash(p.OutputType),
		valueOrDash(p.Resolution),
		encodingLabel(p.VideoEncoding, p.VideoBitrate),
		encodingLabel(p.AudioEncoding, p.AudioBitrate),
	}
}

func encodingLabel(codec, bitrate string) string {
	switch {
	case codec == "" && bitrate == "":
		return "-"
	case bitrate == "":
		return codec
	case codec == "":
		return bitrate
	}
	return codec + " @ " + bitrate
}

func newPresetsListCommand(ctx *commandContext) *cobra.Command {
	var flags pageFlags
	var inputType, outputType string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of presets",
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

			p, err := pager.New(pager.Options[api.Preset]{
				Fetch: func(c context.Context, skip, limit int) ([]api.Preset, error) {
					return client.ListPresets(c, api.PresetQuery{
						InputType:  inputType,
						OutputType: outputType,
						Skip:       skip,
						Limit:      limit,
					})
				},
				PageSize:        cfg.UI.PageSize,
				Notify:          board.Show,
				NotFoundMessage: "No presets found",
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
					items = []api.Preset{}
				}
				return writeJSON(cmd, items)
			}
			if len(items) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, preset := range items {
				rows = append(rows, presetRow(preset))
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(presetHeaders, rows, presetAligns))
			fmt.Fprintf(out, "Page %d (%d per page)\n", p.Page(), p.PageSize())
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&inputType, "input-type", "", "Only presets accepting this container")
	cmd.Flags().StringVar(&outputType, "output-type", "", "Only presets producing this container")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newPresetsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <preset-id|name>",
		Short: "Show one preset including its pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			preset, err := resolvePreset(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, preset)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderDetails(presetDetails(preset)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func presetDetails(p api.Preset) [][2]string {
	return [][2]string{
		{"Preset ID", p.PresetID},
		{"Name", p.Name},
		{"Input type", valueOrDash(p.InputType)},
		{"Output type", valueOrDash(p.OutputType)},
		{"Resolution", valueOrDash(p.Resolution)},
		{"Video", encodingLabel(p.VideoEncoding, p.VideoBitrate)},
		{"Audio", encodingLabel(p.AudioEncoding, p.AudioBitrate)},
		{"Created", formatTimestamp(p.CreatedAt)},
		{"Updated", formatTimestamp(p.UpdatedAt)},
		{"Pipeline", p.Pipeline},
	}
}

func newPresetsCreateCommand(ctx *commandContext) *cobra.Command {
	var filePath string
	var form presets.Form
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a preset from a TOML file or flags",
		Long: "Create a preset. --file loads a TOML definition whose keys match the flag names\n" +
			"(name, input_type, output_type, ...); flags given explicitly override the file.\n" +
			"The pipeline must contain {{input_file}}, {{output_file}} and {{progress}}.",
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := presets.NewForm()
			if filePath != "" {
				loaded, err := presets.LoadForm(filePath)
				if err != nil {
					return err
				}
				draft = loaded
			}
			overrideForm(cmd, &draft, form)

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			board := ctx.alertBoard(cmd)
			defer board.Close()

			preset, err := draft.Submit(cmd.Context(), client)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, preset)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created preset %s (%s)\n", preset.Name, preset.PresetID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "TOML preset definition")
	cmd.Flags().StringVar(&form.Name, "name", "", "Preset name")
	cmd.Flags().StringVar(&form.InputType, "input-type", "", "Input container, e.g. mkv")
	cmd.Flags().StringVar(&form.OutputType, "output-type", "", "Output container, e.g. mp4")
	cmd.Flags().StringVar(&form.Resolution, "resolution", "", "Target resolution, e.g. 1920x1080")
	cmd.Flags().StringVar(&form.VideoEncoding, "video-encoding", "", "Video codec")
	cmd.Flags().StringVar(&form.VideoBitrate, "video-bitrate", "", "Video bitrate")
	cmd.Flags().StringVar(&form.AudioEncoding, "audio-encoding", "", "Audio codec")
	cmd.Flags().StringVar(&form.AudioBitrate, "audio-bitrate", "", "Audio bitrate")
	cmd.Flags().StringVar(&form.Pipeline, "pipeline", "", "Pipeline with {{input_file}}, {{output_file}} and {{progress}} (default pipeline when omitted)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// overrideForm copies the flags the user set onto dst.
func overrideForm(cmd *cobra.Command, dst *presets.Form, src presets.Form) {
	fields := []struct {
		flag string
		dst  *string
		src  string
	}{
		{"name", &dst.Name, src.Name},
		{"input-type", &dst.InputType, src.InputType},
		{"output-type", &dst.OutputType, src.OutputType},
		{"resolution", &dst.Resolution, src.Resolution},
		{"video-encoding", &dst.VideoEncoding, src.VideoEncoding},
		{"video-bitrate", &dst.VideoBitrate, src.VideoBitrate},
		{"audio-encoding", &dst.AudioEncoding, src.AudioEncoding},
		{"audio-bitrate", &dst.AudioBitrate, src.AudioBitrate},
		{"pipeline", &dst.Pipeline, src.Pipeline},
	}
	for _, f := range fields {
		if cmd.Flags().Changed(f.flag) {
			*f.dst = f.src
		}
	}
}

func newPresetsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <preset-id>",
		Short: "Delete a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			preset, err := client.DeletePreset(cmd.Context(), args[0])
			if err != nil {
				if api.IsNotFound(err) {
					return fmt.Errorf("preset %s not found", args[0])
				}
				return errors.New(api.Message(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted preset %s (%s)\n", preset.Name, preset.PresetID)
			return nil
		},
	}
}
