package bench

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Participant runs one ring hand-off for a bucket. Every rank of the group
// calls RunTrial for the same bucket in lockstep.
type Participant interface {
	RunTrial(ctx context.Context, bucket Bucket) error
}

// Coordinator is the participant on rank 0. It starts every hand-off, times
// it, and owns the statistics.
type Coordinator struct {
	transport Transport
	clock     Clock
	overhead  float64
	send      []float64
	recv      []float64
	stats     *StatsAccumulator
	metrics   *Metrics
	verify    bool
}

// Forwarder is the participant on every other rank. It passes each message
// on to the next rank and records nothing.
type Forwarder struct {
	transport Transport
	scratch   []float64
}

// NewCoordinator allocates buffers for the largest bucket and fills the send
// buffer with a fixed pattern.
func NewCoordinator(t Transport, clock Clock, overhead float64, buckets []Bucket, stats *StatsAccumulator, metrics *Metrics) *Coordinator {
	n := maxElements(buckets)
	send := make([]float64, n)
	for i := range send {
		send[i] = float64(i + 1)
	}
	return &Coordinator{
		transport: t,
		clock:     clock,
		overhead:  overhead,
		send:      send,
		recv:      make([]float64, n),
		stats:     stats,
		metrics:   metrics,
	}
}

// VerifyPayload makes the coordinator check that every message comes back
// unchanged.
func (c *Coordinator) VerifyPayload(verify bool) {
	c.verify = verify
}

// RunTrial times one trip of bucket around the ring and records it.
func (c *Coordinator) RunTrial(ctx context.Context, bucket Bucket) error {
	send, recv := c.send[:bucket.Elements], c.recv[:bucket.Elements]
	raw, err := exchangeRoot(ctx, c.transport, c.clock, send, recv)
	if err != nil {
		return err
	}
	elapsed := raw - c.overhead
	if c.verify {
		for i := range send {
			if send[i] != recv[i] {
				return errors.Errorf("element %d of %d came back as %v, sent %v", i, len(send), recv[i], send[i])
			}
		}
		// Zero out the buffer so we don't get false positives next time
		for i := range recv {
			recv[i] = 0
		}
	}
	log.WithFields(log.Fields{"bucket": bucket.Index, "bytes": bucket.Bytes()}).Tracef("trip took %gs", elapsed)
	c.metrics.RecordTrip(bucket.Bytes(), elapsed)
	return c.stats.Update(bucket.Index, elapsed)
}

// NewForwarder allocates a buffer for the largest bucket.
func NewForwarder(t Transport, buckets []Bucket) *Forwarder {
	return &Forwarder{
		transport: t,
		scratch:   make([]float64, maxElements(buckets)),
	}
}

// RunTrial passes one message of bucket on to the next rank.
func (f *Forwarder) RunTrial(ctx context.Context, bucket Bucket) error {
	return forward(ctx, f.transport, f.scratch[:bucket.Elements])
}
