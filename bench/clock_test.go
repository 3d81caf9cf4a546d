package bench

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalibrateOverhead_MinimumDelta(t *testing.T) {
	// Ten pairs with deltas 3, 2, 5, 1.5, 4, 2, 6, 1.5, 3, 2
	deltas := []float64{3, 2, 5, 1.5, 4, 2, 6, 1.5, 3, 2}
	var readings []float64
	now := 100.0
	for _, d := range deltas {
		readings = append(readings, now, now+d)
		now += 10
	}
	clock := &sequenceClock{readings: readings}

	assert.Equal(t, 1.5, CalibrateOverhead(clock, len(deltas)))
	assert.Empty(t, clock.readings, "every pair should be read")
}

func TestCalibrateOverhead_NeverNegative(t *testing.T) {
	clock := &sequenceClock{readings: []float64{5, 4, 7, 6}}
	assert.Equal(t, 0.0, CalibrateOverhead(clock, 2))
}

func TestCalibrateOverhead_AtLeastOnePair(t *testing.T) {
	clock := &sequenceClock{readings: []float64{1, 1.25}}
	assert.Equal(t, 0.25, CalibrateOverhead(clock, 0))
}

func TestCalibrateOverhead_WallClock(t *testing.T) {
	clock := NewWallClock()
	overhead := CalibrateOverhead(clock, 10)
	assert.GreaterOrEqual(t, overhead, 0.0)
	assert.Less(t, overhead, 0.01)

	first := clock.Now()
	assert.GreaterOrEqual(t, clock.Now(), first)
}
