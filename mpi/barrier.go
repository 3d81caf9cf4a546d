package mpi

import (
	"context"

	"github.com/pkg/errors"
)

// Reserved tags used by Barrier. User tags must be non-negative.
const (
	barrierGatherTag  = -1
	barrierReleaseTag = -2
)

// pointToPoint is the transport a collective is built on. Its methods skip
// the reserved tag check.
type pointToPoint interface {
	Rank() int
	Size() int
	sendBytes(ctx context.Context, b []byte, destination, tag int) error
	receiveBytes(ctx context.Context, source, tag int) ([]byte, error)
}

// barrier gathers a token from every rank on rank 0, then releases them all.
func barrier(ctx context.Context, c pointToPoint) error {
	size := c.Size()
	if size <= 1 {
		return nil
	}
	if c.Rank() != 0 {
		if err := c.sendBytes(ctx, nil, 0, barrierGatherTag); err != nil {
			return errors.WithMessage(err, "barrier gather")
		}
		_, err := c.receiveBytes(ctx, 0, barrierReleaseTag)
		return errors.WithMessage(err, "barrier release")
	}
	for source := 1; source < size; source++ {
		if _, err := c.receiveBytes(ctx, source, barrierGatherTag); err != nil {
			return errors.WithMessagef(err, "barrier gather from %d", source)
		}
	}
	for destination := 1; destination < size; destination++ {
		if err := c.sendBytes(ctx, nil, destination, barrierReleaseTag); err != nil {
			return errors.WithMessagef(err, "barrier release to %d", destination)
		}
	}
	return nil
}
