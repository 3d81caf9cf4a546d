package bench

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchange_RoundTripAroundRing(t *testing.T) {
	const size = 4
	for _, mode := range []Mode{ModeAPI, ModePrim} {
		t.Run(mode.String(), func(t *testing.T) {
			clock := &fakeClock{}
			base := localTransports(size, mode)
			hops := make([]*hopTransport, size)
			recorders := make([]*recordingTransport, size)
			transports := make([]Transport, size)
			for i := range base {
				hops[i] = &hopTransport{Transport: base[i], clock: clock, hop: 1}
				recorders[i] = &recordingTransport{Transport: hops[i]}
				transports[i] = recorders[i]
			}

			send := []float64{3, 1, 4, 1, 5, 9, 2, 6}
			recv := make([]float64, len(send))
			var elapsed float64
			runRing(t, transports, func(ctx context.Context, tr Transport) error {
				if tr.Rank() == 0 {
					var err error
					elapsed, err = exchangeRoot(ctx, tr, clock, send, recv)
					return err
				}
				return forward(ctx, tr, make([]float64, len(send)))
			})

			assert.Equal(t, send, recv, "payload must come back unchanged")
			total := 0
			for _, h := range hops {
				assert.Equal(t, 1, h.sends)
				total += h.sends
			}
			assert.Equal(t, size, total, "a trip is one hop per rank")
			// every hop costs 1 and reading the clock is free
			assert.Equal(t, float64(size), elapsed)

			for r, rec := range recorders {
				if r == 0 {
					assert.Equal(t, []int{1}, rec.sentTo)
					assert.Equal(t, []int{size - 1}, rec.recvFrom)
					continue
				}
				assert.Equal(t, []int{r - 1}, rec.recvFrom)
				assert.Equal(t, []int{(r + 1) % size}, rec.sentTo)
			}
		})
	}
}

func TestExchange_TwoProcesses(t *testing.T) {
	transports := localTransports(2, ModeAPI)
	recorder := &recordingTransport{Transport: transports[1]}
	transports[1] = recorder

	send := []float64{42}
	recv := make([]float64, 1)
	runRing(t, transports, func(ctx context.Context, tr Transport) error {
		if tr.Rank() == 0 {
			_, err := exchangeRoot(ctx, tr, NewWallClock(), send, recv)
			return err
		}
		return forward(ctx, tr, make([]float64, 1))
	})
	assert.Equal(t, send, recv)
	require.Equal(t, []int{0}, recorder.recvFrom)
	assert.Equal(t, []int{0}, recorder.sentTo)
}
