package cmd

import (
	"context"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/btracey/ringbench/bench"
)

// NewRootCmd returns the ringbench command with all of its subcommands.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "ringbench [prim]",
		Short: "Measure point-to-point latency and bandwidth around a ring of processes",
		Long: `Measure point-to-point latency and bandwidth around a ring of processes.

Rank 0 sends messages of increasing size to rank 1, every rank forwards to the
next, and the last rank sends back to rank 0. Rank 0 prints the min, avg and
max trip time per message size and the latency and bandwidth of a least
squares fit through the best times.

The optional mode argument selects the transport call path: exactly "prim"
(lower case) sends raw frames, anything else, "PRIM" included, sends the same
frames as typed values. Both put the same bytes on the wire.

Start one process per address, for example with gompirun:

	gompirun 4 ringbench prim

or run every rank inside a single process:

	ringbench --local 4

Settings can also be given in a yaml file passed with --config, with keys such
as bench.maxm, bench.repeats and mpi.alladdr, or as RINGBENCH_BENCH_MAXM style
environment variables.
`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cmd.Flags(), cfgFile)
			if err != nil {
				return err
			}
			if err := ConfigureLogging(cfg.LogLevel); err != nil {
				return err
			}
			mode := bench.ModeAPI
			if len(args) == 1 {
				mode = bench.ParseMode(args[0])
			}
			app := &App{Config: cfg, Out: cmd.OutOrStdout()}
			return app.Benchmark(cmd.Context(), mode)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "yaml config file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn or error")
	addGroupFlags(rootCmd.PersistentFlags())
	addBenchFlags(rootCmd.Flags())

	rootCmd.AddCommand(newHelloCmd(v, &cfgFile))
	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
