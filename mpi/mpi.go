// Package mpi implements an mpi-like process group for go. It provides the
// narrow set of message passing routines needed to run a benchmark across a
// fixed set of cooperating processes: rank and size discovery, tagged
// point-to-point communication, and a barrier.
//
// While this package presents a familiar interface to users of MPI, it does
// not follow the MPI standard exactly. In cases where package documentation
// disagrees with the MPI standard, the package documentation should be
// considered correct. Like MPI, this package emphasises speed over
// robustness: a failed peer is reported as an error on the next operation
// that involves it, and is never reconnected.
//
// A group must begin with a call to Init and should end with a call to
// Finalize. Init determines the size, or number of processes, and assigns
// each process a unique integer identifier, its rank, with 0 <= rank < size.
//
// Two implementations are provided. Network builds an all-to-all mesh of
// connections using the net package. Local connects a set of ranks inside a
// single process through channels, which is useful for testing and for
// running a whole group in one binary.
//
// Every blocking routine takes a context.Context. Cancelling the context, or
// letting its deadline expire, aborts the routine with an error instead of
// blocking forever on a stalled peer.
package mpi

import (
	"context"
	"fmt"
)

// Mpi is a set of routines for communicating within a process group.
type Mpi interface {
	// Init establishes the group. It must be called once before any other
	// routine.
	Init(ctx context.Context) error
	// Finalize releases the group. No more calls may be made afterwards.
	Finalize() error
	// Rank returns the rank of the local process, or -1 before Init.
	Rank() int
	// Size returns the number of processes, or 0 before Init.
	Size() int
	// Send gob-encodes data and transmits it to destination with the given
	// tag. Send returns once the message has been handed to the transport.
	//
	// At most 64 messages per source and tag may wait for a receive. Past
	// that a Local sender blocks, and a Network receiver drops the
	// connection to the sender with an ErrMailboxFull.
	Send(ctx context.Context, data interface{}, destination, tag int) error
	// Receive blocks until a message with the given tag arrives from source
	// and decodes it into data, which must be a pointer.
	Receive(ctx context.Context, data interface{}, source, tag int) error
	// SendBytes transmits b unmodified to destination.
	SendBytes(ctx context.Context, b []byte, destination, tag int) error
	// ReceiveBytes blocks until a message with the given tag arrives from
	// source and returns its bytes.
	ReceiveBytes(ctx context.Context, source, tag int) ([]byte, error)
	// Barrier blocks until every process in the group has called Barrier.
	Barrier(ctx context.Context) error
	// ProcessorName returns a human readable name of the local process.
	ProcessorName() string
}

// TagExists is an error type indicating the tag already has a concurrent
// receive pending from the same source.
type TagExists struct {
	Tag    int
	Source int
}

func (t TagExists) Error() string {
	return fmt.Sprintf("tag %v already in use receiving from %v", t.Tag, t.Source)
}

// ErrRankOutOfRange is returned when a routine names a rank outside the group.
type ErrRankOutOfRange struct {
	Rank int
	Size int
}

func (e *ErrRankOutOfRange) Error() string {
	return fmt.Sprintf("rank %d out of range for group of size %d", e.Rank, e.Size)
}

// ErrReservedTag is returned when a user message uses a negative tag.
// Negative tags are reserved for collective operations.
type ErrReservedTag struct {
	Tag int
}

func (e *ErrReservedTag) Error() string {
	return fmt.Sprintf("tag %d is reserved", e.Tag)
}

// ErrMailboxFull reports that too many messages from Source with Tag were
// waiting for a receive.
type ErrMailboxFull struct {
	Source int
	Tag    int
	Depth  int
}

func (e *ErrMailboxFull) Error() string {
	return fmt.Sprintf("mpi: %d messages with tag %d from %d waiting to be received", e.Depth, e.Tag, e.Source)
}
