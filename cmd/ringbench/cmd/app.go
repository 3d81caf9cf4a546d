package cmd

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/btracey/ringbench/bench"
	"github.com/btracey/ringbench/mpi"
)

// Tags used before and after the benchmark. The ring itself uses tag 0.
const (
	runIDTag = 1
	helloTag = 2
)

type App struct {
	Config *Config
	// Out receives the report. Only rank 0 writes to it.
	Out io.Writer
}

// Benchmark runs the ring benchmark on every rank this process hosts and
// writes the report of rank 0.
func (a *App) Benchmark(ctx context.Context, mode bench.Mode) error {
	if err := a.Config.Bench.Validate(); err != nil {
		return err
	}
	if err := bench.CheckFormat(a.Config.Output); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := bench.NewMetrics(reg)

	var (
		mux    sync.Mutex
		report *bench.Report
	)
	err := a.group(ctx, func(ctx context.Context, m mpi.Mpi) error {
		r, err := a.runRank(ctx, m, mode, metrics)
		if r != nil {
			mux.Lock()
			report = r
			mux.Unlock()
		}
		return err
	})
	if err != nil || report == nil {
		return err
	}

	if err := report.Write(a.Out, a.Config.Output); err != nil {
		return err
	}
	if a.Config.ResultsFile != "" {
		if err := writeFile(a.Config.ResultsFile, report.WriteYAML); err != nil {
			return err
		}
	}
	if a.Config.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(a.Config.MetricsFile, reg); err != nil {
			return errors.Wrapf(err, "writing metrics to %s", a.Config.MetricsFile)
		}
	}
	return nil
}

func (a *App) runRank(ctx context.Context, m mpi.Mpi, mode bench.Mode, metrics *bench.Metrics) (*bench.Report, error) {
	runID, err := a.shareRunID(ctx, m)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"run": runID, "mode": mode}).
		Infof("process %d of %d on %s", m.Rank(), m.Size(), m.ProcessorName())

	b := &bench.Benchmark{
		Config:    a.Config.Bench,
		Transport: bench.NewTransport(m, mode, a.Config.Bench.OpTimeout),
		Clock:     bench.NewWallClock(),
		Metrics:   metrics,
	}
	report, err := b.Run(ctx)
	if err != nil || report == nil {
		return nil, err
	}
	report.RunID = runID
	report.Mode = mode.String()
	report.Processor = m.ProcessorName()
	return report, nil
}

// shareRunID gives every rank the run id chosen by rank 0.
func (a *App) shareRunID(ctx context.Context, m mpi.Mpi) (string, error) {
	if timeout := a.Config.Bench.OpTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout*2)
		defer cancel()
	}
	if m.Rank() != 0 {
		var id string
		err := m.Receive(ctx, &id, 0, runIDTag)
		return id, errors.WithMessage(err, "receiving run id")
	}
	id := uuid.NewString()
	for dst := 1; dst < m.Size(); dst++ {
		if err := m.Send(ctx, id, dst, runIDTag); err != nil {
			return "", errors.WithMessagef(err, "sending run id to %d", dst)
		}
	}
	return id, nil
}

// group runs fn once for every rank hosted by this process: all ranks of an
// in-process group with --local, otherwise the single rank of a network.
func (a *App) group(ctx context.Context, fn func(ctx context.Context, m mpi.Mpi) error) error {
	if a.Config.Local > 0 {
		members := mpi.NewLocalGroup(a.Config.Local)
		defer members[0].Finalize()
		g, gctx := errgroup.WithContext(ctx)
		for _, member := range members {
			member := member
			g.Go(func() error { return fn(gctx, member) })
		}
		return g.Wait()
	}

	network := mpi.NewNetwork(a.Config.MPI)
	if err := network.Init(ctx); err != nil {
		return errors.WithMessage(err, "initializing mpi")
	}
	defer network.Finalize()
	return fn(ctx, network)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return errors.WithStack(f.Close())
}
