package bench

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/btracey/ringbench/mpi"
)

// localTransports returns one Transport per rank of an in-process group.
func localTransports(size int, mode Mode) []Transport {
	group := mpi.NewLocalGroup(size)
	transports := make([]Transport, size)
	for i, member := range group {
		transports[i] = NewTransport(member, mode, 5*time.Second)
	}
	return transports
}

// runRing runs fn concurrently for every transport and fails the test on the
// first error.
func runRing(t *testing.T, transports []Transport, fn func(ctx context.Context, tr Transport) error) {
	t.Helper()
	g, ctx := errgroup.WithContext(context.Background())
	for _, tr := range transports {
		tr := tr
		g.Go(func() error { return fn(ctx, tr) })
	}
	require.NoError(t, g.Wait())
}

// fakeClock advances by tick on every read and by explicit amounts in
// between. It is safe for concurrent use.
type fakeClock struct {
	mux  sync.Mutex
	now  float64
	tick float64
}

func (c *fakeClock) Now() float64 {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.now += c.tick
	return c.now
}

func (c *fakeClock) Advance(d float64) {
	c.mux.Lock()
	c.now += d
	c.mux.Unlock()
}

// sequenceClock returns preset readings in order.
type sequenceClock struct {
	readings []float64
}

func (c *sequenceClock) Now() float64 {
	v := c.readings[0]
	c.readings = c.readings[1:]
	return v
}

// hopTransport charges a fixed cost on the shared clock for every send and
// counts the sends.
type hopTransport struct {
	Transport
	clock *fakeClock
	hop   float64

	mux   sync.Mutex
	sends int
}

func (h *hopTransport) Send(ctx context.Context, buf []float64, destination int) error {
	h.clock.Advance(h.hop)
	h.mux.Lock()
	h.sends++
	h.mux.Unlock()
	return h.Transport.Send(ctx, buf, destination)
}

// recordingTransport records which peers a rank talked to.
type recordingTransport struct {
	Transport
	sentTo   []int
	recvFrom []int
}

func (r *recordingTransport) Send(ctx context.Context, buf []float64, destination int) error {
	r.sentTo = append(r.sentTo, destination)
	return r.Transport.Send(ctx, buf, destination)
}

func (r *recordingTransport) Recv(ctx context.Context, buf []float64, source int) error {
	r.recvFrom = append(r.recvFrom, source)
	return r.Transport.Recv(ctx, buf, source)
}
