package bench

import (
	"math"

	"github.com/pkg/errors"
)

// BucketStats are the timings of one bucket, in seconds.
type BucketStats struct {
	Elements int     `yaml:"elements"`
	Bytes    int     `yaml:"bytes"`
	Min      float64 `yaml:"min"`
	Avg      float64 `yaml:"avg"`
	Max      float64 `yaml:"max"`
	Samples  int     `yaml:"samples"`

	sum float64
}

// StatsAccumulator keeps running timings for a fixed, ordered set of buckets.
// It is owned by the coordinator and is not safe for concurrent use.
type StatsAccumulator struct {
	stats []BucketStats
	// scale multiplies every sample before it enters the average
	scale float64
}

// NewStatsAccumulator returns an accumulator for buckets, which must be in
// ascending size order.
func NewStatsAccumulator(buckets []Bucket) *StatsAccumulator {
	stats := make([]BucketStats, len(buckets))
	for i, b := range buckets {
		stats[i] = BucketStats{
			Elements: b.Elements,
			Min:      math.Inf(1),
			Max:      math.Inf(-1),
		}
	}
	return &StatsAccumulator{stats: stats, scale: 1}
}

// NormalizeByProcesses makes averages divide every sample by numProcs, which
// reproduces the output of the reference benchmark. Minimum and maximum are
// unaffected.
func (s *StatsAccumulator) NormalizeByProcesses(numProcs int) {
	s.scale = 1 / float64(numProcs)
}

// Update records one sample for the bucket with the given 1-based index. Ties
// keep the earlier extremal value.
func (s *StatsAccumulator) Update(index int, seconds float64) error {
	if index < 1 || index > len(s.stats) {
		return errors.Errorf("bucket %d out of range [1, %d]", index, len(s.stats))
	}
	st := &s.stats[index-1]
	st.sum += seconds * s.scale
	st.Samples++
	if seconds < st.Min {
		st.Min = seconds
	}
	if seconds > st.Max {
		st.Max = seconds
	}
	return nil
}

// Finalize converts the accumulated sums into averages over repeats and fills
// in the byte counts. It returns a copy of the statistics in bucket order.
func (s *StatsAccumulator) Finalize(repeats int) []BucketStats {
	out := make([]BucketStats, len(s.stats))
	for i, st := range s.stats {
		st.Bytes = ElementSize * st.Elements
		if repeats > 0 {
			st.Avg = st.sum / float64(repeats)
		}
		out[i] = st
	}
	return out
}
