// Package bench measures point-to-point latency and bandwidth around a ring
// of processes.
//
// Rank 0 sends a message of each size to rank 1; every other rank r receives
// from r-1 and forwards to (r+1) mod size, so the message returns to rank 0
// after size hops. Rank 0 times each trip, subtracts the calibrated cost of
// reading the clock, and keeps the minimum, average and maximum per size. A
// least squares line through the minimum times gives the latency (intercept)
// and the inverse bandwidth (slope).
package bench

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config holds the parameters of a run.
type Config struct {
	// Largest message, in elements.
	MaxM int `mapstructure:"maxm"`
	// Number of message sizes.
	MaxI int `mapstructure:"maxi"`
	// Number of times every size is sampled.
	Repeats int `mapstructure:"repeats"`
	// Number of clock read pairs used to estimate the timer overhead.
	CalibrationRepeats int `mapstructure:"calibrationrepeats"`
	// Divide samples by the number of processes before averaging, as the
	// reference benchmark does.
	LegacyAverage bool `mapstructure:"legacyaverage"`
	// Check that every message returns unchanged.
	Verify bool `mapstructure:"verify"`
	// Bound on every send, receive and barrier. Zero waits forever.
	OpTimeout time.Duration `mapstructure:"optimeout"`
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		MaxM:               1 << 16,
		MaxI:               16,
		Repeats:            10,
		CalibrationRepeats: 10,
		OpTimeout:          time.Minute,
	}
}

// Validate returns a ConfigurationError naming the first invalid setting.
func (c Config) Validate() error {
	if c.MaxI <= 2 {
		return errors.WithStack(&ConfigurationError{
			Name:    "maxI",
			Value:   c.MaxI,
			Message: "more than two message sizes are needed to fit latency and bandwidth",
		})
	}
	if c.MaxM < c.MaxI {
		return errors.WithStack(&ConfigurationError{
			Name:    "maxM",
			Value:   c.MaxM,
			Message: "must be at least maxI",
		})
	}
	if c.Repeats < 1 {
		return errors.WithStack(&ConfigurationError{
			Name:    "repeats",
			Value:   c.Repeats,
			Message: "must be positive",
		})
	}
	if c.OpTimeout < 0 {
		return errors.WithStack(&ConfigurationError{
			Name:    "optimeout",
			Value:   c.OpTimeout,
			Message: "must not be negative",
		})
	}
	return nil
}

// Measurement is what rank 0 has collected once every trial has run.
type Measurement struct {
	MaxM      int
	Processes int
	Repeats   int
	Overhead  float64
	Buckets   []BucketStats
}

// Benchmark runs the ring benchmark on one rank of the group.
type Benchmark struct {
	Config    Config
	Transport Transport
	Clock     Clock
	Metrics   *Metrics
}

// Run measures and summarises. Ranks other than 0 return a nil report.
func (b *Benchmark) Run(ctx context.Context) (*Report, error) {
	m, err := b.Measure(ctx)
	if err != nil || m == nil {
		return nil, err
	}
	report, err := Summarize(m)
	if err != nil {
		return nil, err
	}
	b.Metrics.RecordFit(report.Latency, report.Bandwidth)
	return report, nil
}

// Measure runs every trial. Rank 0 returns the statistics and the other ranks
// return nil.
func (b *Benchmark) Measure(ctx context.Context) (*Measurement, error) {
	t := b.Transport
	size, rank := t.Size(), t.Rank()
	if size < 2 {
		return nil, errors.WithStack(&ConfigurationError{
			Name:    "processes",
			Value:   size,
			Message: "at least two processes are needed to form a ring",
		})
	}
	if b.Config.Repeats < 1 {
		return nil, errors.WithStack(&ConfigurationError{
			Name:    "repeats",
			Value:   b.Config.Repeats,
			Message: "must be positive",
		})
	}
	buckets, err := NewBuckets(b.Config.MaxM, b.Config.MaxI)
	if err != nil {
		return nil, err
	}
	logger := log.WithFields(log.Fields{"rank": rank, "size": size})

	runner := &TrialRunner{
		Transport: t,
		Buckets:   buckets,
		Repeats:   b.Config.Repeats,
	}
	if rank != 0 {
		runner.Participant = NewForwarder(t, buckets)
		logger.Debug("forwarding")
		return nil, runner.Run(ctx)
	}

	clock := b.Clock
	if clock == nil {
		clock = NewWallClock()
	}
	overhead := CalibrateOverhead(clock, b.Config.CalibrationRepeats)
	b.Metrics.RecordOverhead(overhead)
	logger.Infof("timer overhead %gs", overhead)

	stats := NewStatsAccumulator(buckets)
	if b.Config.LegacyAverage {
		stats.NormalizeByProcesses(size)
	}
	coordinator := NewCoordinator(t, clock, overhead, buckets, stats, b.Metrics)
	coordinator.VerifyPayload(b.Config.Verify)
	runner.Participant = coordinator

	logger.Infof("running %d repeats of %d message sizes", b.Config.Repeats, len(buckets))
	if err := runner.Run(ctx); err != nil {
		return nil, err
	}
	return &Measurement{
		MaxM:      b.Config.MaxM,
		Processes: size,
		Repeats:   b.Config.Repeats,
		Overhead:  overhead,
		Buckets:   stats.Finalize(b.Config.Repeats),
	}, nil
}

// Summarize fits latency and bandwidth to the minimum time of every bucket.
func Summarize(m *Measurement) (*Report, error) {
	x := make([]float64, len(m.Buckets))
	y := make([]float64, len(m.Buckets))
	for i, st := range m.Buckets {
		x[i] = float64(st.Bytes)
		y[i] = st.Min
	}
	fit, err := Fit(x, y)
	if err != nil {
		return nil, errors.WithMessage(err, "fitting minimum times")
	}
	report := &Report{
		MaxM:      m.MaxM,
		Processes: m.Processes,
		Repeats:   m.Repeats,
		Overhead:  m.Overhead,
		Buckets:   m.Buckets,
		Fit:       fit,
		Bandwidth: fit.Bandwidth(),
	}
	if len(m.Buckets) > 0 {
		first := m.Buckets[0]
		report.Latency = fit.Latency(float64(first.Bytes), first.Min)
	}
	return report, nil
}
