package mpi

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Local implements Mpi for a group of ranks living in the same process.
// Messages are passed through channels and copied on send, so a sender is
// free to modify its buffer as soon as Send returns.
type Local struct {
	rank  int
	group *localGroup
}

type localGroup struct {
	size      int
	boxes     [][]*tagManager // boxes[destination][source]
	closed    chan struct{}
	closeOnce sync.Once
}

// NewLocalGroup returns size connected ranks. Rank i of the group is the i-th
// element of the returned slice.
func NewLocalGroup(size int) []*Local {
	g := &localGroup{
		size:   size,
		boxes:  make([][]*tagManager, size),
		closed: make(chan struct{}),
	}
	members := make([]*Local, size)
	for dst := range g.boxes {
		g.boxes[dst] = make([]*tagManager, size)
		for src := range g.boxes[dst] {
			g.boxes[dst][src] = newTagManager(src)
		}
		members[dst] = &Local{rank: dst, group: g}
	}
	return members
}

// Init is a no-op; the group is connected by NewLocalGroup.
func (l *Local) Init(ctx context.Context) error { return nil }

// Finalize closes the whole group; pending receives on every rank fail.
func (l *Local) Finalize() error {
	l.group.closeOnce.Do(func() { close(l.group.closed) })
	return nil
}

func (l *Local) Rank() int { return l.rank }

func (l *Local) Size() int { return l.group.size }

func (l *Local) ProcessorName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return fmt.Sprintf("%s/local-%d", host, l.rank)
}

func (l *Local) Send(ctx context.Context, data interface{}, destination, tag int) error {
	b, err := encode(data)
	if err != nil {
		return err
	}
	return l.SendBytes(ctx, b, destination, tag)
}

func (l *Local) Receive(ctx context.Context, data interface{}, source, tag int) error {
	b, err := l.ReceiveBytes(ctx, source, tag)
	if err != nil {
		return err
	}
	return decode(b, data)
}

func (l *Local) SendBytes(ctx context.Context, b []byte, destination, tag int) error {
	if err := checkUserTag(tag); err != nil {
		return err
	}
	return l.sendBytes(ctx, b, destination, tag)
}

func (l *Local) ReceiveBytes(ctx context.Context, source, tag int) ([]byte, error) {
	if err := checkUserTag(tag); err != nil {
		return nil, err
	}
	return l.receiveBytes(ctx, source, tag)
}

func (l *Local) Barrier(ctx context.Context) error {
	return barrier(ctx, l)
}

func (l *Local) sendBytes(ctx context.Context, b []byte, destination, tag int) error {
	if err := checkRank(destination, l.group.size); err != nil {
		return err
	}
	msg := make([]byte, len(b))
	copy(msg, b)
	return l.group.boxes[destination][l.rank].deliver(ctx, tag, msg, l.group.closed)
}

func (l *Local) receiveBytes(ctx context.Context, source, tag int) ([]byte, error) {
	if err := checkRank(source, l.group.size); err != nil {
		return nil, err
	}
	return l.group.boxes[l.rank][source].await(ctx, tag, l.group.closed, errFinalized)
}
