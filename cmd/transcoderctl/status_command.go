package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"transcoderctl/internal/notifications"
	"transcoderctl/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var testNotification bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check backend connectivity and local paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg, client)
			if testNotification {
				result := preflight.Result{Name: "Test notification", Passed: true, Detail: "Sent"}
				if cfg.Notifications.NtfyTopic == "" {
					result = preflight.Result{Name: "Test notification", Detail: "no ntfy_topic configured"}
				} else if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
					result = preflight.Result{Name: "Test notification", Detail: err.Error()}
				}
				results = append(results, result)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, checkLabel(r.Passed, colorize), r.Detail})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Check", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			if n := preflight.Failed(results); n > 0 {
				return fmt.Errorf("%d check(s) failed", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&testNotification, "test-notification", false, "Also send a test ntfy notification")
	return cmd
}

func checkLabel(passed, colorize bool) string {
	label, color := "FAIL", ansiRed
	if passed {
		label, color = "OK", ansiGreen
	}
	if colorize {
		return color + label + ansiReset
	}
	return label
}
