package bench

import "context"

// exchangeRoot sends send around the ring and waits for it to come back into
// recv. It returns the raw elapsed time between just before the send and just
// after the receive. send and recv must have the same length.
func exchangeRoot(ctx context.Context, t Transport, clock Clock, send, recv []float64) (float64, error) {
	start := clock.Now()
	if err := t.Send(ctx, send, 1); err != nil {
		return 0, err
	}
	if err := t.Recv(ctx, recv, t.Size()-1); err != nil {
		return 0, err
	}
	return clock.Now() - start, nil
}

// forward receives buf from the previous rank on the ring and passes it on to
// the next one. The last rank forwards back to rank 0.
func forward(ctx context.Context, t Transport, buf []float64) error {
	rank, size := t.Rank(), t.Size()
	if err := t.Recv(ctx, buf, rank-1); err != nil {
		return err
	}
	return t.Send(ctx, buf, (rank+1)%size)
}
