package bench

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsAccumulator_MinMaxIndependentOfOrder(t *testing.T) {
	orders := [][]float64{
		{5, 3, 8, 3},
		{3, 3, 5, 8},
		{8, 5, 3, 3},
		{3, 8, 3, 5},
	}
	for _, samples := range orders {
		s := NewStatsAccumulator([]Bucket{{Index: 1, Elements: 1}})
		for _, v := range samples {
			require.NoError(t, s.Update(1, v))
		}
		st := s.Finalize(len(samples))[0]
		assert.Equal(t, 3.0, st.Min, "samples %v", samples)
		assert.Equal(t, 8.0, st.Max, "samples %v", samples)
		assert.Equal(t, 4.75, st.Avg, "samples %v", samples)
		assert.Equal(t, 4, st.Samples)
	}
}

func TestStatsAccumulator_Finalize(t *testing.T) {
	buckets, err := NewBuckets(100, 4)
	require.NoError(t, err)
	s := NewStatsAccumulator(buckets)
	for k := 0; k < 2; k++ {
		for _, b := range buckets {
			require.NoError(t, s.Update(b.Index, float64(b.Index+k)))
		}
	}

	stats := s.Finalize(2)
	require.Len(t, stats, 4)
	for i, st := range stats {
		assert.Equal(t, buckets[i].Elements, st.Elements)
		assert.Equal(t, ElementSize*buckets[i].Elements, st.Bytes)
		assert.Equal(t, float64(i+1), st.Min)
		assert.Equal(t, float64(i+2), st.Max)
		assert.Equal(t, float64(i+1)+0.5, st.Avg)
		assert.True(t, st.Min <= st.Avg && st.Avg <= st.Max)
		if i > 0 {
			assert.Greater(t, st.Bytes, stats[i-1].Bytes)
		}
	}
}

func TestStatsAccumulator_LegacyAverage(t *testing.T) {
	s := NewStatsAccumulator([]Bucket{{Index: 1, Elements: 1}})
	s.NormalizeByProcesses(4)
	require.NoError(t, s.Update(1, 8))
	require.NoError(t, s.Update(1, 4))

	st := s.Finalize(2)[0]
	assert.Equal(t, 1.5, st.Avg)
	assert.Equal(t, 4.0, st.Min)
	assert.Equal(t, 8.0, st.Max)
}

func TestStatsAccumulator_OutOfRange(t *testing.T) {
	s := NewStatsAccumulator([]Bucket{{Index: 1, Elements: 1}, {Index: 2, Elements: 2}})
	assert.Error(t, s.Update(0, 1))
	assert.Error(t, s.Update(3, 1))
	assert.NoError(t, s.Update(2, 1))
}
