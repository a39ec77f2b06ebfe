// Package chronicle implements the application side of the socket proxy. A
// Go application uses it to submit objects to a remote chronicle node and to
// receive the objects the node delivers.
package chronicle

import (
	"fmt"
	"time"

	"github.com/mosaicnetworks/chronicle/src/proxy"
	"github.com/sirupsen/logrus"
)

// SocketChronicleProxy binds to a remote chronicle node over an RPC/TCP
// connection. It serves the State.Deliver requests sent by the
// SocketAppProxy, and submits objects through Chronicle.Submit. Any language
// can play this role as long as it speaks the same JSON-RPC methods.
type SocketChronicleProxy struct {
	nodeAddress string
	bindAddress string

	dispatcher *proxy.Dispatcher

	client *SocketChronicleProxyClient
	server *SocketChronicleProxyServer
}

// NewSocketChronicleProxy creates a SocketChronicleProxy that serves
// deliveries on bindAddr and submits to the node at nodeAddr.
func NewSocketChronicleProxy(
	nodeAddr string,
	bindAddr string,
	timeout time.Duration,
	logger *logrus.Entry,
) (*SocketChronicleProxy, error) {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	dispatcher := proxy.NewDispatcher()

	client := NewSocketChronicleProxyClient(nodeAddr, timeout)

	server, err := NewSocketChronicleProxyServer(bindAddr, dispatcher, logger)
	if err != nil {
		return nil, err
	}

	chronicleProxy := &SocketChronicleProxy{
		nodeAddress: nodeAddr,
		bindAddress: bindAddr,
		dispatcher:  dispatcher,
		client:      client,
		server:      server,
	}

	go chronicleProxy.server.listen()

	return chronicleProxy, nil
}

// Register binds a handler to the objects of a type delivered by the node.
func (p *SocketChronicleProxy) Register(objectType string, handler proxy.DeliveryHandler) error {
	return p.dispatcher.Register(objectType, handler)
}

// SubmitObject submits data as an object of the given type.
func (p *SocketChronicleProxy) SubmitObject(objectType string, data []byte) error {
	ack, err := p.client.Submit(objectType, data)
	if err != nil {
		return err
	}

	if !ack {
		return fmt.Errorf("node did not accept the object")
	}

	return nil
}

// Close stops serving deliveries and closes the connection to the node.
func (p *SocketChronicleProxy) Close() error {
	p.client.close()
	return p.server.close()
}
