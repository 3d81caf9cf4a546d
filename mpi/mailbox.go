package mpi

import (
	"bytes"
	"context"
	"encoding/gob"
	"sync"

	"github.com/pkg/errors"
)

// mailboxDepth is the number of undelivered messages a single source and tag
// can hold.
const mailboxDepth = 64

// tagManager routes the messages of one source to receivers by tag.
type tagManager struct {
	source    int
	mux       sync.Mutex
	boxes     map[int]chan []byte
	receiving map[int]bool
}

func newTagManager(source int) *tagManager {
	return &tagManager{
		source:    source,
		boxes:     make(map[int]chan []byte),
		receiving: make(map[int]bool),
	}
}

// Channel returns the mailbox for tag, creating it if needed.
func (t *tagManager) Channel(tag int) chan []byte {
	t.mux.Lock()
	defer t.mux.Unlock()
	c, ok := t.boxes[tag]
	if !ok {
		c = make(chan []byte, mailboxDepth)
		t.boxes[tag] = c
	}
	return c
}

// Acquire marks tag as being received, returning TagExists if a receive on
// the same tag is already pending.
func (t *tagManager) Acquire(tag int) error {
	t.mux.Lock()
	defer t.mux.Unlock()
	if t.receiving[tag] {
		return TagExists{Tag: tag, Source: t.source}
	}
	t.receiving[tag] = true
	return nil
}

// Release frees tag for another receive.
func (t *tagManager) Release(tag int) {
	t.mux.Lock()
	delete(t.receiving, tag)
	t.mux.Unlock()
}

// deliver puts b into the mailbox for tag, blocking while the mailbox is full.
func (t *tagManager) deliver(ctx context.Context, tag int, b []byte, closed <-chan struct{}) error {
	select {
	case t.Channel(tag) <- b:
		return nil
	case <-closed:
		return errFinalized()
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "delivering tag %d", tag)
	}
}

// offer puts b into the mailbox for tag without blocking. A full mailbox is
// an ErrMailboxFull.
func (t *tagManager) offer(tag int, b []byte) error {
	select {
	case t.Channel(tag) <- b:
		return nil
	default:
		return errors.WithStack(&ErrMailboxFull{Source: t.source, Tag: tag, Depth: mailboxDepth})
	}
}

// await blocks until a message for tag arrives, the peer dies, or ctx ends.
// Messages already queued are returned even when the peer has died.
func (t *tagManager) await(ctx context.Context, tag int, dead <-chan struct{}, cause func() error) ([]byte, error) {
	if err := t.Acquire(tag); err != nil {
		return nil, err
	}
	defer t.Release(tag)

	c := t.Channel(tag)
	select {
	case b := <-c:
		return b, nil
	default:
	}
	select {
	case b := <-c:
		return b, nil
	case <-dead:
		select {
		case b := <-c:
			return b, nil
		default:
		}
		return nil, cause()
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "receiving tag %d from %d", tag, t.source)
	}
}

func encode(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

func decode(b []byte, data interface{}) error {
	return errors.WithStack(gob.NewDecoder(bytes.NewReader(b)).Decode(data))
}

func checkUserTag(tag int) error {
	if tag < 0 {
		return errors.WithStack(&ErrReservedTag{Tag: tag})
	}
	return nil
}

func checkRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return errors.WithStack(&ErrRankOutOfRange{Rank: rank, Size: size})
	}
	return nil
}

func errFinalized() error {
	return errors.New("mpi: group finalized")
}
