package main

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"transcoderctl/internal/sandbox"
)

func newSandboxCommand(ctx *commandContext) *cobra.Command {
	var (
		bind        string
		seed        bool
		tick        time.Duration
		step        float64
		storageHost string
	)

	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run an in-memory transcoder backend for local testing",
		Long: "Serve the backend REST API and progress sockets from memory. A simulated worker\n" +
			"advances active jobs by --step percent every --tick until they complete.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []sandbox.Option{sandbox.WithLogger(ctx.loggerValue())}
			if seed {
				opts = append(opts, sandbox.WithSeedPresets())
			}
			if storageHost != "" {
				opts = append(opts, sandbox.WithStorageHost(storageHost))
			}
			srv := sandbox.New(opts...)

			if tick > 0 && step > 0 {
				go srv.RunWorker(cmd.Context(), tick, step)
			}

			out := cmd.OutOrStdout()
			return srv.Serve(cmd.Context(), bind, func(addr net.Addr) {
				fmt.Fprintf(out, "Sandbox backend listening on http://%s\n", addr)
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "127.0.0.1:8000", "Listen address")
	cmd.Flags().BoolVar(&seed, "seed", true, "Start with the default preset catalogue")
	cmd.Flags().DurationVar(&tick, "tick", time.Second, "Simulated worker interval (0 disables the worker)")
	cmd.Flags().Float64Var(&step, "step", 10, "Progress percent added per tick")
	cmd.Flags().StringVar(&storageHost, "storage-host", "", "Host placed in signed download URLs (default: the request host)")
	return cmd
}
