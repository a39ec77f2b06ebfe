package net

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewInmemAddr returns a new in-memory addr with a randomly generated UUID as
// the ID.
func NewInmemAddr() string {
	return uuid.NewString()
}

// InmemTransport implements the Transport interface, to allow chronicle to be
// tested in-memory without going over a network.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan RPC
	localAddr  string
	peers      map[string]*InmemTransport
	timeout    time.Duration
}

// NewInmemTransport is used to initialize a new transport and generates a
// random local address if none is specified.
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan RPC, 16),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		timeout:    500 * time.Millisecond,
	}
	return addr, trans
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Forward implements the Transport interface.
func (i *InmemTransport) Forward(target string, args *ForwardRequest, resp *ForwardResponse) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*ForwardResponse)
	*resp = *out
	return nil
}

// Quorum implements the Transport interface.
func (i *InmemTransport) Quorum(target string, args *QuorumRequest, resp *QuorumResponse) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*QuorumResponse)
	*resp = *out
	return nil
}

// Members implements the Transport interface.
func (i *InmemTransport) Members(target string, args *MembersRequest, resp *MembersResponse) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*MembersResponse)
	*resp = *out
	return nil
}

// Join implements the Transport interface.
func (i *InmemTransport) Join(target string, args *JoinRequest, resp *JoinResponse) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*JoinResponse)
	*resp = *out
	return nil
}

// Leave implements the Transport interface.
func (i *InmemTransport) Leave(target string, args *LeaveRequest, resp *LeaveResponse) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*LeaveResponse)
	*resp = *out
	return nil
}

func (i *InmemTransport) makeRPC(target string, args interface{}, timeout time.Duration) (rpcResp RPCResponse, err error) {
	i.RLock()
	peer, ok := i.peers[target]
	i.RUnlock()

	if !ok {
		err = fmt.Errorf("failed to connect to peer: %v", target)
		return
	}

	// Send the RPC over
	respCh := make(chan RPCResponse, 1)
	select {
	case peer.consumerCh <- RPC{Command: args, RespChan: respCh}:
	case <-time.After(timeout):
		err = fmt.Errorf("command enqueue timed out")
		return
	}

	// Wait for a response
	select {
	case rpcResp = <-respCh:
		if rpcResp.Error != nil {
			err = rpcResp.Error
		}
	case <-time.After(timeout):
		err = fmt.Errorf("command timed out")
	}
	return
}

// Connect is used to connect this transport to another transport for a given
// peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport.
func (i *InmemTransport) Close() error {
	i.DisconnectAll()
	return nil
}

// Listen is an empty function as there is no need to defer initialisation of
// the InMem service.
func (i *InmemTransport) Listen() {
}
