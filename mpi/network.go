package mpi

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// dialInterval is the pause between attempts to reach a peer that is not yet
// listening.
const dialInterval = 300 * time.Millisecond

// Network implements the Mpi interface using network calls provided by the
// net package in the standard library. Network creates an all-to-all
// connection using the specified network protocol among all provided
// addresses. Each pair of processes uses two connections: one dialled by each
// side, carrying that side's outgoing messages. Messages are framed with
// encoding/gob, and so some network protocols may not be appropriate.
//
// Network is not built with security in mind, but it does confirm that both
// sides of a connection were started with the same password before accepting
// the connection.
type Network struct {
	NetProto string        // Which network protocol to use (see net package for options)
	Addr     string        // Address of the local process
	Addrs    []string      // Addresses of all processes. Addr must be among them
	Timeout  time.Duration // If set, Init fails if the connections are not made within the duration
	Password string

	// Listener, if set, is used instead of listening on Addr. Its address
	// must still equal Addr.
	Listener net.Listener

	hashedPassword string

	myrank int // rank of this process
	nNodes int // total number of processes

	peers  []*peer // connections to all of the other nodes, indexed by rank
	closed chan struct{}
	once   sync.Once
}

// NewNetwork returns a Network configured from cfg.
func NewNetwork(cfg Config) *Network {
	return &Network{
		NetProto: cfg.Protocol,
		Addr:     cfg.Addr,
		Addrs:    append([]string(nil), cfg.Addrs...),
		Timeout:  cfg.InitTimeout,
		Password: cfg.Password,
	}
}

// peer holds both connections to one other process. The local process uses
// peer of its own rank only for its inbox.
type peer struct {
	rank int

	dial    net.Conn // Send on
	enc     *gob.Encoder
	sendMux sync.Mutex

	listen net.Conn // Receive from
	dec    *gob.Decoder

	inbox *tagManager

	dead     chan struct{}
	deadOnce sync.Once
	err      error
}

func newPeer(rank int) *peer {
	return &peer{
		rank:  rank,
		inbox: newTagManager(rank),
		dead:  make(chan struct{}),
	}
}

func (p *peer) fail(err error) {
	p.deadOnce.Do(func() {
		p.err = errors.Wrapf(err, "connection to rank %d lost", p.rank)
		close(p.dead)
	})
}

func (p *peer) cause() error {
	return p.err
}

func (n *Network) Rank() int {
	if n.nNodes == 0 {
		return -1
	}
	return n.myrank
}

func (n *Network) Size() int {
	return n.nNodes
}

// ProcessorName returns the host name and the address of the local process.
func (n *Network) ProcessorName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s(%s)", host, n.Addr)
}

// handshake is the first message sent on every connection, in both directions.
type handshake struct {
	Password string
	Id       int
}

// message is a frame sent over the wire
type message struct {
	Tag   int
	Bytes []byte
}

// Init implements the Mpi init function
func (n *Network) Init(ctx context.Context) error {
	if n.NetProto == "" {
		n.NetProto = "tcp"
	}
	sum := sha256.Sum256([]byte(n.Password))
	n.hashedPassword = hex.EncodeToString(sum[:])

	// Sort all of the addresses to ensure that all processes agree
	addrs := append([]string(nil), n.Addrs...)
	sort.Strings(addrs)
	n.Addrs = addrs

	for i := 0; i < len(addrs)-1; i++ {
		if addrs[i] == addrs[i+1] {
			return errors.Errorf("mpi init: address %s is not unique", addrs[i])
		}
	}

	// Rank is the order in the list
	rank := sort.SearchStrings(addrs, n.Addr)
	if !(rank < len(addrs) && addrs[rank] == n.Addr) {
		return errors.Errorf("mpi init: local address %q not in global list", n.Addr)
	}
	n.myrank = rank
	n.nNodes = len(addrs)
	n.closed = make(chan struct{})

	if err := n.startConnections(ctx); err != nil {
		n.close()
		n.nNodes = 0
		return err
	}
	log.WithFields(log.Fields{"rank": n.myrank, "size": n.nNodes}).Debug("mpi network established")
	return nil
}

func (n *Network) startConnections(ctx context.Context) error {
	n.peers = make([]*peer, n.nNodes)
	for i := range n.peers {
		n.peers[i] = newPeer(i)
	}
	if n.nNodes == 1 {
		if n.Listener != nil {
			n.Listener.Close()
		}
		return nil
	}

	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	// Listen for all of the other nodes and dial all of them at the same time
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.establishListenConnections(gctx) })
	g.Go(func() error { return n.establishDialConnections(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	for i, p := range n.peers {
		if i == n.myrank {
			continue
		}
		go n.receiveReader(p)
	}
	return nil
}

// establishListenConnections accepts one connection from every other node
func (n *Network) establishListenConnections(ctx context.Context) error {
	listener := n.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen(n.NetProto, n.Addr)
		if err != nil {
			return errors.Wrap(err, "error listening")
		}
	}
	defer listener.Close()

	// Closing the listener unblocks Accept when the context ends
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-stop:
		}
	}()

	var (
		mux    sync.Mutex
		result *multierror.Error
		wg     sync.WaitGroup
	)
	seen := make(map[int]bool)
	for i := 0; i < n.nNodes-1; i++ {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				err = errors.Wrap(ctx.Err(), "listener timed out")
			}
			mux.Lock()
			result = multierror.Append(result, errors.Wrap(err, "error accepting"))
			mux.Unlock()
			break
		}

		wg.Add(1)
		go func(conn net.Conn) {
			defer wg.Done()
			id, dec, err := n.acceptHandshake(ctx, conn)
			mux.Lock()
			defer mux.Unlock()
			if err == nil && seen[id] {
				err = errors.Errorf("duplicate connection from rank %d", id)
			}
			if err != nil {
				conn.Close()
				result = multierror.Append(result, err)
				return
			}
			seen[id] = true
			n.peers[id].listen = conn
			n.peers[id].dec = dec
		}(conn)
	}
	wg.Wait()
	return result.ErrorOrNil()
}

func (n *Network) acceptHandshake(ctx context.Context, conn net.Conn) (int, *gob.Decoder, error) {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	dec := gob.NewDecoder(conn)
	var hello handshake
	if err := dec.Decode(&hello); err != nil {
		return -1, nil, errors.Wrap(err, "reading handshake")
	}
	id, err := n.passwordAndId(hello)
	if err != nil {
		return -1, nil, err
	}

	// Send back a handshake the other way
	enc := gob.NewEncoder(conn)
	if err := enc.Encode(handshake{Password: n.hashedPassword, Id: n.myrank}); err != nil {
		return -1, nil, errors.Wrapf(err, "replying to handshake from rank %d", id)
	}
	return id, dec, nil
}

// establishDialConnections dials every other node concurrently, retrying
// until the node is listening or the context ends
func (n *Network) establishDialConnections(ctx context.Context) error {
	var (
		mux    sync.Mutex
		result *multierror.Error
		wg     sync.WaitGroup
	)
	attempts := uint(1 << 20)
	if n.Timeout > 0 {
		attempts = uint(n.Timeout/dialInterval) + 1
	}
	for i := 0; i < n.nNodes; i++ {
		if i == n.myrank {
			continue // Don't dial yourself
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := n.dialPeer(ctx, i, attempts); err != nil {
				mux.Lock()
				result = multierror.Append(result, err)
				mux.Unlock()
			}
		}(i)
	}
	wg.Wait()
	return result.ErrorOrNil()
}

func (n *Network) dialPeer(ctx context.Context, i int, attempts uint) error {
	var dialer net.Dialer
	var conn net.Conn
	err := retry.Do(
		func() error {
			var err error
			conn, err = dialer.DialContext(ctx, n.NetProto, n.Addrs[i])
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(dialInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return errors.Wrapf(err, "dialing %s", n.Addrs[i])
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	// Established the connection, send the first handshake message
	enc := gob.NewEncoder(conn)
	if err := enc.Encode(handshake{Password: n.hashedPassword, Id: n.myrank}); err != nil {
		conn.Close()
		return errors.Wrapf(err, "sending handshake to %s", n.Addrs[i])
	}

	// Receive the handshake message back
	var reply handshake
	if err := gob.NewDecoder(conn).Decode(&reply); err != nil {
		conn.Close()
		return errors.Wrapf(err, "reading handshake from %s", n.Addrs[i])
	}
	id, err := n.passwordAndId(reply)
	if err != nil {
		conn.Close()
		return err
	}
	if id != i {
		conn.Close()
		return errors.Errorf("dialed rank %d at %s but rank %d answered", i, n.Addrs[i], id)
	}
	n.peers[i].dial = conn
	n.peers[i].enc = enc
	return nil
}

// Checks that the password matches what the network expects and that the
// id is valid
func (n *Network) passwordAndId(hello handshake) (int, error) {
	if hello.Password != n.hashedPassword {
		return -1, errors.New("bad password")
	}
	if hello.Id >= n.nNodes || hello.Id < 0 || hello.Id == n.myrank {
		return -1, errors.Errorf("bad id: %v", hello.Id)
	}
	return hello.Id, nil
}

// Finalize closes all of the connections
func (n *Network) Finalize() error {
	return n.close()
}

func (n *Network) close() error {
	var result *multierror.Error
	n.once.Do(func() {
		if n.closed != nil {
			close(n.closed)
		}
		for _, p := range n.peers {
			if p.dial != nil {
				if err := p.dial.Close(); err != nil {
					result = multierror.Append(result, err)
				}
			}
			if p.listen != nil {
				if err := p.listen.Close(); err != nil {
					result = multierror.Append(result, err)
				}
			}
			p.fail(errFinalized())
		}
	})
	return result.ErrorOrNil()
}

// Send implements the Mpi function
func (n *Network) Send(ctx context.Context, data interface{}, destination, tag int) error {
	b, err := encode(data)
	if err != nil {
		return err
	}
	return n.SendBytes(ctx, b, destination, tag)
}

// Receive implements the Mpi function
func (n *Network) Receive(ctx context.Context, data interface{}, source, tag int) error {
	b, err := n.ReceiveBytes(ctx, source, tag)
	if err != nil {
		return err
	}
	return decode(b, data)
}

func (n *Network) SendBytes(ctx context.Context, b []byte, destination, tag int) error {
	if err := checkUserTag(tag); err != nil {
		return err
	}
	return n.sendBytes(ctx, b, destination, tag)
}

func (n *Network) ReceiveBytes(ctx context.Context, source, tag int) ([]byte, error) {
	if err := checkUserTag(tag); err != nil {
		return nil, err
	}
	return n.receiveBytes(ctx, source, tag)
}

// Barrier implements the Mpi function
func (n *Network) Barrier(ctx context.Context) error {
	return barrier(ctx, n)
}

func (n *Network) sendBytes(ctx context.Context, b []byte, destination, tag int) error {
	if err := checkRank(destination, n.nNodes); err != nil {
		return err
	}
	p := n.peers[destination]
	if destination == n.myrank {
		msg := make([]byte, len(b))
		copy(msg, b)
		return p.inbox.deliver(ctx, tag, msg, n.closed)
	}

	p.sendMux.Lock()
	defer p.sendMux.Unlock()
	select {
	case <-p.dead:
		return p.cause()
	default:
	}
	if deadline, ok := ctx.Deadline(); ok {
		p.dial.SetWriteDeadline(deadline)
		defer p.dial.SetWriteDeadline(time.Time{})
	}
	if err := p.enc.Encode(message{Tag: tag, Bytes: b}); err != nil {
		err = errors.Wrapf(err, "sending tag %d to rank %d", tag, destination)
		p.fail(err)
		return err
	}
	return nil
}

func (n *Network) receiveBytes(ctx context.Context, source, tag int) ([]byte, error) {
	if err := checkRank(source, n.nNodes); err != nil {
		return nil, err
	}
	p := n.peers[source]
	return p.inbox.await(ctx, tag, p.dead, p.cause)
}

// receiveReader reads frames from the connection of one peer and routes them
// to the mailbox of their tag until the connection fails or closes
func (n *Network) receiveReader(p *peer) {
	for {
		var m message
		if err := p.dec.Decode(&m); err != nil {
			select {
			case <-n.closed:
				p.fail(errFinalized())
			default:
				log.WithError(err).WithField("peer", p.rank).Debug("mpi connection closed")
				p.fail(err)
			}
			return
		}
		// A stalled tag would hold up every other tag of this peer, so the
		// peer is dropped instead.
		if err := p.inbox.offer(m.Tag, m.Bytes); err != nil {
			log.WithError(err).WithField("peer", p.rank).Error("mpi mailbox overflow")
			p.fail(err)
			p.listen.Close()
			return
		}
	}
}
