package app

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"

	"github.com/mosaicnetworks/chronicle/src/proxy"
	"github.com/mosaicnetworks/chronicle/src/proxy/proto"
	"github.com/sirupsen/logrus"
)

// SocketAppProxyClient is the client component of the AppProxy that sends
// deliveries to the application.
type SocketAppProxyClient struct {
	clientAddr string
	timeout    time.Duration
	logger     *logrus.Entry

	l   sync.Mutex
	rpc *rpc.Client
}

// NewSocketAppProxyClient creates a client for the application at
// clientAddr. The connection is opened on first use.
func NewSocketAppProxyClient(clientAddr string, timeout time.Duration, logger *logrus.Entry) *SocketAppProxyClient {
	return &SocketAppProxyClient{
		clientAddr: clientAddr,
		timeout:    timeout,
		logger:     logger,
	}
}

func (p *SocketAppProxyClient) getConnection() error {
	if p.rpc == nil {
		conn, err := net.DialTimeout("tcp", p.clientAddr, p.timeout)

		if err != nil {
			return err
		}

		p.rpc = jsonrpc.NewClient(conn)
	}

	return nil
}

// Deliver calls State.Deliver on the application. An application that does
// not handle the type answers false, which is reported as ErrNoHandler.
func (p *SocketAppProxyClient) Deliver(objectType string, data []byte, timestamp int64) error {
	p.l.Lock()
	defer p.l.Unlock()

	if err := p.getConnection(); err != nil {
		return err
	}

	var handled bool

	delivery := proto.Delivery{
		Type:      objectType,
		Data:      data,
		Timestamp: timestamp,
	}

	if err := p.rpc.Call("State.Deliver", delivery, &handled); err != nil {
		p.rpc.Close()
		p.rpc = nil

		return err
	}

	p.logger.WithFields(logrus.Fields{
		"type":      objectType,
		"timestamp": timestamp,
		"handled":   handled,
	}).Debug("AppProxyClient.Deliver")

	if !handled {
		return proxy.ErrNoHandler{Type: objectType}
	}

	return nil
}

func (p *SocketAppProxyClient) close() {
	p.l.Lock()
	defer p.l.Unlock()

	if p.rpc != nil {
		p.rpc.Close()
		p.rpc = nil
	}
}
