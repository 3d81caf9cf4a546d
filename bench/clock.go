package bench

import "time"

// Clock is a monotonic timer reporting seconds since an arbitrary origin.
type Clock interface {
	Now() float64
}

// WallClock reads the monotonic reading of the system clock.
type WallClock struct {
	origin time.Time
}

// NewWallClock returns a clock reading zero now.
func NewWallClock() *WallClock {
	return &WallClock{origin: time.Now()}
}

// Now returns the seconds elapsed since the clock was created.
func (c *WallClock) Now() float64 {
	return time.Since(c.origin).Seconds()
}

// CalibrateOverhead estimates the cost of reading clock by timing repeats
// pairs of back-to-back reads and keeping the smallest delta. The minimum
// is an optimistic estimate, so it is safe to subtract from every sample.
func CalibrateOverhead(clock Clock, repeats int) float64 {
	if repeats < 1 {
		repeats = 1
	}
	overhead := 0.0
	for k := 0; k < repeats; k++ {
		t0 := clock.Now()
		delta := clock.Now() - t0
		if delta < 0 {
			delta = 0
		}
		if k == 0 || delta < overhead {
			overhead = delta
		}
	}
	return overhead
}
