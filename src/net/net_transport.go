package net

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

const (
	rpcForward uint8 = iota
	rpcQuorum
	rpcMembers
	rpcJoin
	rpcLeave
)

const (
	bufSize = 64 * 1024
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")
)

/*
NetworkTransport provides a network based transport that can be used to
communicate with chronicle nodes on remote machines. It requires an underlying
stream layer to provide a stream abstraction, which can be simple TCP, TLS,
etc.

Each RPC request is framed by sending a byte that indicates the message type,
followed by the msgpack encoded request. The response is an error string
followed by the response object, both encoded using msgpack.
*/
type NetworkTransport struct {
	logger *logrus.Entry

	connPool     map[string][]*netConn
	connPoolLock sync.Mutex
	maxPool      int

	consumeCh chan RPC

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	stream StreamLayer

	timeout     time.Duration
	joinTimeout time.Duration
}

type netConn struct {
	target string
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	dec    *codec.Decoder
	enc    *codec.Encoder
}

// Release closes the underlying connection.
func (n *netConn) Release() error {
	return n.conn.Close()
}

// maxInitLen bounds the allocation made for a single decoded collection,
// whatever length a remote peer announces.
const maxInitLen = 1 << 20

func msgpackHandle() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	mh.MaxInitLen = maxInitLen
	return mh
}

// NewNetworkTransport creates a new network transport with the given stream
// layer. The maxPool controls how many connections we will pool (per
// target). The timeout is used to apply I/O deadlines; joinTimeout applies to
// Join and Members requests, which may carry a whole membership list.
func NewNetworkTransport(
	stream StreamLayer,
	maxPool int,
	timeout time.Duration,
	joinTimeout time.Duration,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	trans := &NetworkTransport{
		connPool:    make(map[string][]*netConn),
		consumeCh:   make(chan RPC),
		logger:      logger.WithField("prefix", "transport"),
		maxPool:     maxPool,
		shutdownCh:  make(chan struct{}),
		stream:      stream,
		timeout:     timeout,
		joinTimeout: joinTimeout,
	}

	return trans
}

// Close is used to stop the network transport.
func (n *NetworkTransport) Close() error {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if !n.shutdown {
		close(n.shutdownCh)
		n.stream.Close()

		n.connPoolLock.Lock()
		for _, conns := range n.connPool {
			for _, c := range conns {
				c.Release()
			}
		}
		n.connPool = make(map[string][]*netConn)
		n.connPoolLock.Unlock()

		n.shutdown = true
	}
	return nil
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan RPC {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	addr := n.stream.Addr()

	if addr != nil {
		return addr.String()
	}

	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// getPooledConn is used to grab a pooled connection.
func (n *NetworkTransport) getPooledConn(target string) *netConn {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	conns, ok := n.connPool[target]
	if !ok || len(conns) == 0 {
		return nil
	}

	var conn *netConn
	num := len(conns)
	conn, conns[num-1] = conns[num-1], nil
	n.connPool[target] = conns[:num-1]
	return conn
}

// getConn is used to get a connection from the pool.
func (n *NetworkTransport) getConn(target string, timeout time.Duration) (*netConn, error) {
	if conn := n.getPooledConn(target); conn != nil {
		return conn, nil
	}

	conn, err := n.stream.Dial(target, timeout)
	if err != nil {
		return nil, err
	}

	netConn := &netConn{
		target: target,
		conn:   conn,
		r:      bufio.NewReaderSize(conn, bufSize),
		w:      bufio.NewWriterSize(conn, bufSize),
	}
	netConn.dec = codec.NewDecoder(netConn.r, msgpackHandle())
	netConn.enc = codec.NewEncoder(netConn.w, msgpackHandle())

	return netConn, nil
}

// returnConn returns a connection back to the pool.
func (n *NetworkTransport) returnConn(conn *netConn) {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	key := conn.target
	conns := n.connPool[key]

	if !n.IsShutdown() && len(conns) < n.maxPool {
		n.connPool[key] = append(conns, conn)
	} else {
		conn.Release()
	}
}

// Forward implements the Transport interface.
func (n *NetworkTransport) Forward(target string, args *ForwardRequest, resp *ForwardResponse) error {
	return n.genericRPC(target, rpcForward, args, resp)
}

// Quorum implements the Transport interface.
func (n *NetworkTransport) Quorum(target string, args *QuorumRequest, resp *QuorumResponse) error {
	return n.genericRPC(target, rpcQuorum, args, resp)
}

// Members implements the Transport interface.
func (n *NetworkTransport) Members(target string, args *MembersRequest, resp *MembersResponse) error {
	if err := n.genericRPC(target, rpcMembers, args, resp); err != nil {
		return err
	}
	normalize(resp.Peers)
	return nil
}

// Join implements the Transport interface.
func (n *NetworkTransport) Join(target string, args *JoinRequest, resp *JoinResponse) error {
	if err := n.genericRPC(target, rpcJoin, args, resp); err != nil {
		return err
	}
	normalize(resp.Peers)
	return nil
}

// Leave implements the Transport interface.
func (n *NetworkTransport) Leave(target string, args *LeaveRequest, resp *LeaveResponse) error {
	return n.genericRPC(target, rpcLeave, args, resp)
}

// timeoutFor returns the deadline of a request type. Membership requests
// carry the whole member list and get the longer join timeout.
func (n *NetworkTransport) timeoutFor(rpcType uint8) time.Duration {
	switch rpcType {
	case rpcMembers, rpcJoin:
		return n.joinTimeout
	default:
		return n.timeout
	}
}

// genericRPC handles a simple request/response RPC.
func (n *NetworkTransport) genericRPC(target string, rpcType uint8, args interface{}, resp interface{}) error {
	if n.IsShutdown() {
		return ErrTransportShutdown
	}

	timeout := n.timeoutFor(rpcType)

	conn, err := n.getConn(target, timeout)
	if err != nil {
		return err
	}

	if timeout > 0 {
		conn.conn.SetDeadline(time.Now().Add(timeout))
	}

	if err = sendRPC(conn, rpcType, args); err != nil {
		return err
	}

	canReturn, err := decodeResponse(conn, resp)
	if canReturn {
		n.returnConn(conn)
	}

	return err
}

// sendRPC is used to encode and send the RPC.
func sendRPC(conn *netConn, rpcType uint8, args interface{}) error {
	if err := conn.w.WriteByte(rpcType); err != nil {
		conn.Release()
		return err
	}

	if err := conn.enc.Encode(args); err != nil {
		conn.Release()
		return err
	}

	if err := conn.w.Flush(); err != nil {
		conn.Release()
		return err
	}
	return nil
}

// decodeResponse is used to decode an RPC response and reports whether the
// connection can be reused.
func decodeResponse(conn *netConn, resp interface{}) (bool, error) {
	var rpcError string
	if err := conn.dec.Decode(&rpcError); err != nil {
		conn.Release()
		return false, err
	}

	if err := conn.dec.Decode(resp); err != nil {
		conn.Release()
		return false, err
	}

	if rpcError != "" {
		return true, errors.New(rpcError)
	}
	return true, nil
}

// Listen opens the stream and handles incoming connections.
func (n *NetworkTransport) Listen() {
	for {
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		n.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		go n.handleConn(conn)
	}
}

// handleConn is used to handle an inbound connection for its lifespan.
func (n *NetworkTransport) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReaderSize(conn, bufSize)
	w := bufio.NewWriterSize(conn, bufSize)
	dec := codec.NewDecoder(r, msgpackHandle())
	enc := codec.NewEncoder(w, msgpackHandle())

	for {
		if err := n.handleCommand(r, dec, enc); err != nil {
			if err == ErrTransportShutdown {
				n.logger.WithField("error", err).Debug("Failed to decode incoming command")
			} else if err != io.EOF {
				n.logger.WithField("error", err).Error("Failed to decode incoming command")
			}
			return
		}
		if err := w.Flush(); err != nil {
			n.logger.WithField("error", err).Error("Failed to flush response")
			return
		}
	}
}

// normalizer is implemented by requests carrying peers, which must be
// normalized after decoding.
type normalizer interface {
	normalize()
}

func (r *JoinRequest) normalize() {
	if r.Peer != nil {
		r.Peer.Normalize()
	}
}

func (r *LeaveRequest) normalize() {
	if r.Peer != nil {
		r.Peer.Normalize()
	}
}

// newCommand returns an empty request of the given type.
func newCommand(rpcType uint8) (interface{}, error) {
	switch rpcType {
	case rpcForward:
		return new(ForwardRequest), nil
	case rpcQuorum:
		return new(QuorumRequest), nil
	case rpcMembers:
		return new(MembersRequest), nil
	case rpcJoin:
		return new(JoinRequest), nil
	case rpcLeave:
		return new(LeaveRequest), nil
	default:
		return nil, fmt.Errorf("unknown rpc type %d", rpcType)
	}
}

// handleCommand is used to decode and dispatch a single command.
func (n *NetworkTransport) handleCommand(r *bufio.Reader, dec *codec.Decoder, enc *codec.Encoder) error {
	rpcType, err := r.ReadByte()
	if err != nil {
		return err
	}

	cmd, err := newCommand(rpcType)
	if err != nil {
		return err
	}

	if err := dec.Decode(cmd); err != nil {
		return err
	}

	if nz, ok := cmd.(normalizer); ok {
		nz.normalize()
	}

	respCh := make(chan RPCResponse, 1)
	rpc := RPC{
		Command:  cmd,
		RespChan: respCh,
	}

	select {
	case n.consumeCh <- rpc:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	select {
	case resp := <-respCh:
		respErr := ""
		if resp.Error != nil {
			respErr = resp.Error.Error()
		}
		if err := enc.Encode(respErr); err != nil {
			return err
		}

		return enc.Encode(resp.Response)
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}
}
