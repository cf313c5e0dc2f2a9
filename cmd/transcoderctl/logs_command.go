package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"transcoderctl/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines     int
		follow    bool
		level     string
		jobID     string
		component string
		raw       bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the console's structured log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter := logs.Filter{JobID: strings.TrimSpace(jobID), Component: strings.TrimSpace(component)}
			if level != "" {
				var lvl slog.Level
				if err := lvl.UnmarshalText([]byte(level)); err != nil {
					return fmt.Errorf("invalid --level %q", level)
				}
				filter.MinLevel = &lvl
			}

			out := cmd.OutOrStdout()
			printLines := func(batch []string) {
				for _, line := range batch {
					if !raw {
						if entry, ok := logs.ParseEntry(line); ok {
							line = entry.Format()
						}
					}
					fmt.Fprintln(out, line)
				}
			}

			path := cfg.LogFilePath()
			result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines, Filter: filter})
			if err != nil {
				return err
			}
			printLines(result.Lines)
			if !follow {
				return nil
			}

			offset := result.Offset
			for {
				result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{
					Offset: offset,
					Follow: true,
					Wait:   time.Second,
					Filter: filter,
				})
				if cmd.Context().Err() != nil {
					return nil
				}
				if err != nil {
					return err
				}
				printLines(result.Lines)
				offset = result.Offset
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&jobID, "job", "", "Only entries for this job id")
	cmd.Flags().StringVar(&component, "component", "", "Only entries from this component")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON lines unformatted")
	return cmd
}
