package net

import (
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	errNotAdvertisable = errors.New("local bind address is not advertisable")
	errNotTCP          = errors.New("local address is not a TCP address")
	errNotIPv4         = errors.New("advertise address is not an IPv4 address")
)

// keepAlive is the TCP keep-alive period of outgoing connections. Pooled
// connections can stay idle for a whole sync window.
const keepAlive = 30 * time.Second

// StreamLayer is used with the NetworkTransport to provide the low level stream
// abstraction.
type StreamLayer interface {
	net.Listener

	// Dial is used to create a new outgoing connection
	Dial(address string, timeout time.Duration) (net.Conn, error)

	// AdvertiseAddr returns the publicly-reachable address of the stream
	AdvertiseAddr() string
}

// TCPStreamLayer implements StreamLayer interface for plain TCP.
type TCPStreamLayer struct {
	advertise string
	listener  net.Listener
}

// Dial implements the StreamLayer interface.
func (t *TCPStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout:   timeout,
		KeepAlive: keepAlive,
	}
	return dialer.Dial("tcp", address)
}

// Accept implements the net.Listener interface.
func (t *TCPStreamLayer) Accept() (net.Conn, error) {
	return t.listener.Accept()
}

// Close implements the net.Listener interface.
func (t *TCPStreamLayer) Close() error {
	return t.listener.Close()
}

// Addr implements the net.Listener interface.
func (t *TCPStreamLayer) Addr() net.Addr {
	return t.listener.Addr()
}

// AdvertiseAddr implements the StreamLayer interface.
func (t *TCPStreamLayer) AdvertiseAddr() string {
	return t.advertise
}

// NewTCPTransport returns a NetworkTransport that is built on top of
// a TCP streaming transport layer, with log output going to the supplied Logger.
//
// The advertised address is the identity of the node in the topology, so it
// must be a concrete IPv4 address. It defaults to the bound address.
func NewTCPTransport(
	bindAddr string,
	advertise string,
	maxPool int,
	timeout time.Duration,
	joinTimeout time.Duration,
	logger *logrus.Entry,
) (*NetworkTransport, error) {

	list, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}

	addr, err := advertiseAddr(list, advertise)
	if err != nil {
		list.Close()
		return nil, err
	}

	stream := &TCPStreamLayer{
		advertise: addr,
		listener:  list,
	}

	return NewNetworkTransport(stream, maxPool, timeout, joinTimeout, logger), nil
}

// advertiseAddr resolves the address other nodes reach us on.
func advertiseAddr(list net.Listener, advertise string) (string, error) {
	var resolved net.Addr = list.Addr()

	if advertise != "" {
		r, err := net.ResolveTCPAddr("tcp", advertise)
		if err != nil {
			return "", err
		}
		resolved = r
	}

	addr, ok := resolved.(*net.TCPAddr)
	if !ok {
		return "", errNotTCP
	}
	if addr.IP.IsUnspecified() {
		return "", errNotAdvertisable
	}
	if addr.IP.To4() == nil {
		return "", errNotIPv4
	}

	if advertise != "" {
		return advertise, nil
	}
	return addr.String(), nil
}
