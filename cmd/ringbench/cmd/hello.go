package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/btracey/ringbench/mpi"
)

func newHelloCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "hello",
		Short: "Check that every rank can reach every other rank",
		Long: `Check that every rank can reach every other rank.

Every rank concurrently sends a greeting to all ranks, itself included, and
prints the greetings it receives. Use it to try out a set of addresses before
running the benchmark on them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cmd.Flags(), *cfgFile)
			if err != nil {
				return err
			}
			if err := ConfigureLogging(cfg.LogLevel); err != nil {
				return err
			}
			app := &App{Config: cfg, Out: cmd.OutOrStdout()}
			return app.Hello(cmd.Context())
		},
	}
}

// Hello exchanges a greeting between every pair of ranks.
func (a *App) Hello(ctx context.Context) error {
	out := &lockedWriter{w: a.Out}
	return a.group(ctx, func(ctx context.Context, m mpi.Mpi) error {
		return hello(ctx, m, out)
	})
}

func hello(ctx context.Context, m mpi.Mpi, out io.Writer) error {
	rank, size := m.Rank(), m.Size()
	log.Debugf("hello from %d of %d on %s", rank, size, m.ProcessorName())

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < size; i++ {
		i := i
		g.Go(func() error {
			str := fmt.Sprintf("Hello node %v, I'm node %v", i, rank)
			if i == rank {
				str = fmt.Sprintf("I'm just node %d talking to myself", rank)
			}
			return errors.WithMessagef(m.Send(ctx, str, i, helloTag), "greeting %d", i)
		})
		g.Go(func() error {
			var str string
			if err := m.Receive(ctx, &str, i, helloTag); err != nil {
				return errors.WithMessagef(err, "waiting for %d", i)
			}
			_, err := fmt.Fprintf(out, "I, node %v, received a message: %q\n", rank, str)
			return err
		})
	}
	return g.Wait()
}

type lockedWriter struct {
	mux sync.Mutex
	w   io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mux.Lock()
	defer l.mux.Unlock()
	return l.w.Write(p)
}
