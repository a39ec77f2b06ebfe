package app

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/mosaicnetworks/chronicle/src/proxy"
	"github.com/mosaicnetworks/chronicle/src/proxy/proto"
	"github.com/sirupsen/logrus"
)

// SocketAppProxyServer is the server component of the AppProxy that responds
// to RPC requests from the application.
type SocketAppProxyServer struct {
	netListener net.Listener
	rpcServer   *rpc.Server
	submitCh    chan []byte
	timeout     time.Duration
	logger      *logrus.Entry
}

// NewSocketAppProxyServer creates a new SocketAppProxyServer
func NewSocketAppProxyServer(bindAddress string, timeout time.Duration, logger *logrus.Entry) (*SocketAppProxyServer, error) {
	server := &SocketAppProxyServer{
		submitCh: make(chan []byte),
		timeout:  timeout,
		logger:   logger,
	}

	if err := server.register(bindAddress); err != nil {
		return nil, err
	}

	return server, nil
}

func (p *SocketAppProxyServer) register(bindAddress string) error {
	rpcServer := rpc.NewServer()

	if err := rpcServer.RegisterName("Chronicle", p); err != nil {
		return err
	}

	p.rpcServer = rpcServer

	l, err := net.Listen("tcp", bindAddress)
	if err != nil {
		p.logger.WithField("error", err).Error("Failed to listen")
		return err
	}

	p.netListener = l

	return nil
}

func (p *SocketAppProxyServer) listen() {
	for {
		conn, err := p.netListener.Accept()
		if err != nil {
			p.logger.WithField("error", err).Debug("Stopped accepting")
			return
		}

		go p.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

func (p *SocketAppProxyServer) close() error {
	return p.netListener.Close()
}

// Submit hands a submission to the node. The ack is false if the node does
// not pick it up within the timeout.
func (p *SocketAppProxyServer) Submit(s proto.Submission, ack *bool) error {
	payload := s.Data

	if s.Type != "" {
		var err error
		payload, err = proxy.NewObject(s.Type, s.Data)
		if err != nil {
			return err
		}
	}

	if len(payload) == 0 {
		return fmt.Errorf("empty submission")
	}

	p.logger.WithField("type", s.Type).Debug("Submit")

	select {
	case p.submitCh <- payload:
		*ack = true
	case <-time.After(p.timeout):
		*ack = false
	}

	return nil
}
