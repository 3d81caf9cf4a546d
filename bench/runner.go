package bench

import (
	"context"

	"github.com/pkg/errors"
)

// TrialRunner drives the repetition loop. Repetitions are the outer loop and
// buckets the inner one, so every bucket is sampled once per repetition.
type TrialRunner struct {
	Transport   Transport
	Participant Participant
	Buckets     []Bucket
	Repeats     int
}

// Run executes every trial. All ranks synchronise on a barrier before each
// hand-off so that no rank starts a bucket while another is still busy with
// the previous one. The first error aborts the run.
func (r *TrialRunner) Run(ctx context.Context) error {
	for k := 1; k <= r.Repeats; k++ {
		for _, bucket := range r.Buckets {
			if err := r.Transport.Barrier(ctx); err != nil {
				return errors.WithMessagef(err, "repeat %d bucket %d", k, bucket.Index)
			}
			if err := r.Participant.RunTrial(ctx, bucket); err != nil {
				return errors.WithMessagef(err, "repeat %d bucket %d", k, bucket.Index)
			}
		}
	}
	return nil
}
