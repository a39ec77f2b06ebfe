package chronicle

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/mosaicnetworks/chronicle/src/proxy"
	"github.com/mosaicnetworks/chronicle/src/proxy/proto"
	"github.com/sirupsen/logrus"
)

// SocketChronicleProxyServer serves the deliveries of a node.
type SocketChronicleProxyServer struct {
	netListener net.Listener
	rpcServer   *rpc.Server
	dispatcher  *proxy.Dispatcher
	logger      *logrus.Entry
}

// NewSocketChronicleProxyServer listens on bindAddress and routes deliveries
// through dispatcher.
func NewSocketChronicleProxyServer(bindAddress string,
	dispatcher *proxy.Dispatcher,
	logger *logrus.Entry) (*SocketChronicleProxyServer, error) {

	server := &SocketChronicleProxyServer{
		dispatcher: dispatcher,
		logger:     logger,
	}

	if err := server.register(bindAddress); err != nil {
		return nil, err
	}

	return server, nil
}

func (p *SocketChronicleProxyServer) register(bindAddress string) error {
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("State", p); err != nil {
		return err
	}
	p.rpcServer = rpcServer

	l, err := net.Listen("tcp", bindAddress)

	if err != nil {
		return err
	}

	p.netListener = l

	return nil
}

func (p *SocketChronicleProxyServer) listen() error {
	for {
		conn, err := p.netListener.Accept()

		if err != nil {
			return err
		}

		go p.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

func (p *SocketChronicleProxyServer) close() error {
	return p.netListener.Close()
}

// Deliver calls the handler registered for the type of d. handled is false
// when there is none.
func (p *SocketChronicleProxyServer) Deliver(d proto.Delivery, handled *bool) error {
	payload, err := proxy.NewObject(d.Type, d.Data)
	if err != nil {
		return err
	}

	err = p.dispatcher.Dispatch(payload, d.Timestamp)

	p.logger.WithFields(logrus.Fields{
		"type":      d.Type,
		"timestamp": d.Timestamp,
		"err":       err,
	}).Debug("ChronicleProxyServer.Deliver")

	if _, ok := err.(proxy.ErrNoHandler); ok {
		*handled = false
		return nil
	}
	if err != nil {
		return err
	}

	*handled = true
	return nil
}
