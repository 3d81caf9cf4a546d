package bench

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// ringTag is the message tag of every ring hand-off.
const ringTag = 0

// Transport is the view of the process group the benchmark runs on. Send and
// Recv move exactly len(buf) elements.
type Transport interface {
	Rank() int
	Size() int
	Barrier(ctx context.Context) error
	Send(ctx context.Context, buf []float64, destination int) error
	Recv(ctx context.Context, buf []float64, source int) error
	ProcessorName() string
}

// Comm is the part of an mpi.Mpi a Transport is built on.
type Comm interface {
	Rank() int
	Size() int
	Barrier(ctx context.Context) error
	Send(ctx context.Context, data interface{}, destination, tag int) error
	Receive(ctx context.Context, data interface{}, source, tag int) error
	SendBytes(ctx context.Context, b []byte, destination, tag int) error
	ReceiveBytes(ctx context.Context, source, tag int) ([]byte, error)
	ProcessorName() string
}

// Mode selects the call path a Transport uses on the Comm. Both paths send
// the same little-endian frame of ElementSize bytes per element.
type Mode int

const (
	// ModeAPI sends frames as typed values through Comm.Send and
	// Comm.Receive.
	ModeAPI Mode = iota
	// ModePrim sends frames raw through Comm.SendBytes and
	// Comm.ReceiveBytes.
	ModePrim
)

// String returns the mode argument that selects m.
func (m Mode) String() string {
	if m == ModePrim {
		return "prim"
	}
	return "api"
}

// ParseMode maps the positional mode argument to a Mode: exactly "prim"
// selects ModePrim, anything else ModeAPI.
func ParseMode(arg string) Mode {
	if arg == "prim" {
		return ModePrim
	}
	return ModeAPI
}

// NewTransport returns a Transport using the call path of mode. If timeout is
// positive every operation fails with a TransportFailure once it has waited
// that long.
func NewTransport(comm Comm, mode Mode, timeout time.Duration) Transport {
	base := bounded{comm: comm, timeout: timeout}
	if mode == ModePrim {
		return &primTransport{bounded: base}
	}
	return &apiTransport{bounded: base}
}

// bounded holds what both call paths share: the Comm and the per-operation
// wait bound.
type bounded struct {
	comm    Comm
	timeout time.Duration
}

func (b *bounded) Rank() int { return b.comm.Rank() }

func (b *bounded) Size() int { return b.comm.Size() }

func (b *bounded) ProcessorName() string { return b.comm.ProcessorName() }

func (b *bounded) Barrier(ctx context.Context) error {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	if err := b.comm.Barrier(ctx); err != nil {
		return errors.WithStack(&TransportFailure{Op: "barrier", Peer: -1, Err: err})
	}
	return nil
}

func (b *bounded) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout > 0 {
		return context.WithTimeout(ctx, b.timeout)
	}
	return context.WithCancel(ctx)
}

func failure(op string, peer int, err error) error {
	return errors.WithStack(&TransportFailure{Op: op, Peer: peer, Err: err})
}

func countMismatch(got, want int) error {
	return errors.Errorf("received %d elements, expected %d", got, want)
}

// frames packs elements into little-endian fixed-width frames. Both call
// paths put exactly ElementSize bytes per element on the wire.
type frames struct {
	frame []byte
}

func (f *frames) pack(buf []float64) []byte {
	n := len(buf) * ElementSize
	if cap(f.frame) < n {
		f.frame = make([]byte, n)
	}
	frame := f.frame[:n]
	for i, v := range buf {
		binary.LittleEndian.PutUint64(frame[i*ElementSize:], math.Float64bits(v))
	}
	return frame
}

func unpack(frame []byte, buf []float64) error {
	if len(frame) != len(buf)*ElementSize {
		return countMismatch(len(frame)/ElementSize, len(buf))
	}
	for i := range buf {
		buf[i] = math.Float64frombits(binary.LittleEndian.Uint64(frame[i*ElementSize:]))
	}
	return nil
}

// apiTransport sends frames as typed byte slices through Comm.Send, which
// gob carries unchanged.
type apiTransport struct {
	bounded
	frames
	scratch []byte
}

func (t *apiTransport) Send(ctx context.Context, buf []float64, destination int) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	if err := t.comm.Send(ctx, t.pack(buf), destination, ringTag); err != nil {
		return failure("send", destination, err)
	}
	return nil
}

func (t *apiTransport) Recv(ctx context.Context, buf []float64, source int) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	got := t.scratch[:0]
	if err := t.comm.Receive(ctx, &got, source, ringTag); err != nil {
		return failure("recv", source, err)
	}
	t.scratch = got
	if err := unpack(got, buf); err != nil {
		return failure("recv", source, err)
	}
	return nil
}

type primTransport struct {
	bounded
	frames
}

func (t *primTransport) Send(ctx context.Context, buf []float64, destination int) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	if err := t.comm.SendBytes(ctx, t.pack(buf), destination, ringTag); err != nil {
		return failure("send", destination, err)
	}
	return nil
}

func (t *primTransport) Recv(ctx context.Context, buf []float64, source int) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	frame, err := t.comm.ReceiveBytes(ctx, source, ringTag)
	if err != nil {
		return failure("recv", source, err)
	}
	if err := unpack(frame, buf); err != nil {
		return failure("recv", source, err)
	}
	return nil
}
