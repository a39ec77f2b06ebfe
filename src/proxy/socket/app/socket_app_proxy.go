// Package app implements the node side of the socket proxy: an AppProxy that
// talks JSON-RPC over TCP with an application running in another process.
package app

import (
	"time"

	"github.com/mosaicnetworks/chronicle/src/proxy"
	"github.com/sirupsen/logrus"
)

// SocketAppProxy implements the AppProxy interface over a pair of JSON-RPC
// connections. The application submits objects to the server side and
// receives deliveries from the client side. Handlers registered locally take
// precedence over the remote application.
type SocketAppProxy struct {
	clientAddress string
	bindAddress   string

	local *proxy.Dispatcher

	client *SocketAppProxyClient
	server *SocketAppProxyServer

	logger *logrus.Entry
}

// NewSocketAppProxy creates a SocketAppProxy listening on bindAddr and
// delivering to the application at clientAddr.
func NewSocketAppProxy(clientAddr string, bindAddr string, timeout time.Duration, logger *logrus.Entry) (*SocketAppProxy, error) {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}
	logger = logger.WithField("prefix", "app-proxy")

	client := NewSocketAppProxyClient(clientAddr, timeout, logger)

	server, err := NewSocketAppProxyServer(bindAddr, timeout, logger)
	if err != nil {
		return nil, err
	}

	appProxy := &SocketAppProxy{
		clientAddress: clientAddr,
		bindAddress:   bindAddr,
		local:         proxy.NewDispatcher(),
		client:        client,
		server:        server,
		logger:        logger,
	}

	go appProxy.server.listen()

	return appProxy, nil
}

// Close stops accepting application connections.
func (p *SocketAppProxy) Close() error {
	p.client.close()
	return p.server.close()
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
// Implement AppProxy Interface

// SubmitCh returns the channel of payloads submitted by the application.
func (p *SocketAppProxy) SubmitCh() chan []byte {
	return p.server.submitCh
}

// Register binds a local handler to an object type. Objects of that type are
// not forwarded to the application.
func (p *SocketAppProxy) Register(objectType string, handler proxy.DeliveryHandler) error {
	return p.local.Register(objectType, handler)
}

// Deliver dispatches an object to a local handler if one exists, and to the
// application otherwise.
func (p *SocketAppProxy) Deliver(payload []byte, timestamp int64) error {
	err := p.local.Dispatch(payload, timestamp)
	if _, ok := err.(proxy.ErrNoHandler); !ok {
		return err
	}

	var o proxy.Object
	if err := o.Unmarshal(payload); err != nil {
		return err
	}

	return p.client.Deliver(o.Type, o.Data, timestamp)
}
