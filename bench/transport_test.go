package bench

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btracey/ringbench/mpi"
)

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModePrim, ParseMode("prim"))
	assert.Equal(t, ModeAPI, ParseMode("PRIM"))
	assert.Equal(t, ModeAPI, ParseMode("Prim"))
	assert.Equal(t, ModeAPI, ParseMode(""))
	assert.Equal(t, ModeAPI, ParseMode("api"))
	assert.Equal(t, ModeAPI, ParseMode("anything"))
	assert.Equal(t, "prim", ModePrim.String())
	assert.Equal(t, "api", ModeAPI.String())
}

func TestTransport_ModesCarrySameElements(t *testing.T) {
	payload := []float64{0, -1.5, 3.25, 1e300, 5e-324}
	for _, mode := range []Mode{ModeAPI, ModePrim} {
		t.Run(mode.String(), func(t *testing.T) {
			transports := localTransports(2, mode)
			got := make([]float64, len(payload))
			runRing(t, transports, func(ctx context.Context, tr Transport) error {
				if tr.Rank() == 0 {
					return tr.Send(ctx, payload, 1)
				}
				return tr.Recv(ctx, got, 0)
			})
			assert.Equal(t, payload, got)
		})
	}
}

// wireComm records the encoded size of every payload handed to the Comm.
type wireComm struct {
	Comm
	mux   sync.Mutex
	sizes []int
}

func (w *wireComm) record(n int) {
	w.mux.Lock()
	w.sizes = append(w.sizes, n)
	w.mux.Unlock()
}

func (w *wireComm) Send(ctx context.Context, data interface{}, destination, tag int) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return err
	}
	w.record(buf.Len())
	return w.Comm.Send(ctx, data, destination, tag)
}

func (w *wireComm) SendBytes(ctx context.Context, b []byte, destination, tag int) error {
	w.record(len(b))
	return w.Comm.SendBytes(ctx, b, destination, tag)
}

func TestTransport_ModesPutSameBytesOnWire(t *testing.T) {
	buckets, err := NewBuckets(1<<16, 16)
	require.NoError(t, err)
	ctx := context.Background()

	for _, mode := range []Mode{ModeAPI, ModePrim} {
		t.Run(mode.String(), func(t *testing.T) {
			group := mpi.NewLocalGroup(2)
			wire := &wireComm{Comm: group[0]}
			send := NewTransport(wire, mode, 5*time.Second)
			recv := NewTransport(group[1], mode, 5*time.Second)
			coordinator := NewCoordinator(send, nil, 0, buckets, nil, nil)

			for _, bucket := range []Bucket{buckets[0], buckets[1], buckets[15]} {
				payload := coordinator.send[:bucket.Elements]
				require.NoError(t, send.Send(ctx, payload, 1))
				got := make([]float64, bucket.Elements)
				require.NoError(t, recv.Recv(ctx, got, 0))
				assert.Equal(t, payload, got)
			}

			require.Len(t, wire.sizes, 3)
			for i, bucket := range []Bucket{buckets[0], buckets[1], buckets[15]} {
				// gob adds a short type and length header to the typed path
				assert.GreaterOrEqual(t, wire.sizes[i], bucket.Bytes())
				assert.LessOrEqual(t, wire.sizes[i], bucket.Bytes()+32)
			}
		})
	}
}

func TestTransport_PrimFrameLayout(t *testing.T) {
	group := mpi.NewLocalGroup(2)
	ctx := context.Background()
	prim0 := NewTransport(group[0], ModePrim, 0)
	prim1 := NewTransport(group[1], ModePrim, 0)

	require.NoError(t, prim0.Send(ctx, []float64{1, 2}, 1))
	b, err := group[1].ReceiveBytes(ctx, 0, ringTag)
	require.NoError(t, err)
	assert.Len(t, b, 2*ElementSize)

	require.NoError(t, group[0].SendBytes(ctx, b, 1, ringTag))
	got := make([]float64, 2)
	require.NoError(t, prim1.Recv(ctx, got, 0))
	assert.Equal(t, []float64{1, 2}, got)
}

func TestTransport_CountMismatch(t *testing.T) {
	for _, mode := range []Mode{ModeAPI, ModePrim} {
		t.Run(mode.String(), func(t *testing.T) {
			transports := localTransports(2, mode)
			ctx := context.Background()
			require.NoError(t, transports[0].Send(ctx, []float64{1, 2, 3}, 1))

			err := transports[1].Recv(ctx, make([]float64, 2), 0)
			var failure *TransportFailure
			require.True(t, errors.As(err, &failure), "got %v", err)
			assert.Equal(t, "recv", failure.Op)
			assert.Equal(t, 0, failure.Peer)
		})
	}
}

func TestTransport_BoundedWait(t *testing.T) {
	group := mpi.NewLocalGroup(2)
	tr := NewTransport(group[1], ModeAPI, 20*time.Millisecond)

	start := time.Now()
	err := tr.Recv(context.Background(), make([]float64, 1), 0)
	var failure *TransportFailure
	require.True(t, errors.As(err, &failure), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)

	err = tr.Barrier(context.Background())
	require.True(t, errors.As(err, &failure), "got %v", err)
	assert.Equal(t, "barrier", failure.Op)
	assert.Equal(t, -1, failure.Peer)
}

func TestTransport_SendOutOfRange(t *testing.T) {
	tr := localTransports(2, ModePrim)[0]
	err := tr.Send(context.Background(), []float64{1}, 5)
	var failure *TransportFailure
	require.True(t, errors.As(err, &failure))
	var rangeErr *mpi.ErrRankOutOfRange
	assert.True(t, errors.As(err, &rangeErr))
}
