package chronicle

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"

	"github.com/mosaicnetworks/chronicle/src/proxy/proto"
)

// SocketChronicleProxyClient submits objects to a node.
type SocketChronicleProxyClient struct {
	nodeAddr string
	timeout  time.Duration

	l   sync.Mutex
	rpc *rpc.Client
}

// NewSocketChronicleProxyClient creates a client for the node at nodeAddr.
func NewSocketChronicleProxyClient(nodeAddr string, timeout time.Duration) *SocketChronicleProxyClient {
	return &SocketChronicleProxyClient{
		nodeAddr: nodeAddr,
		timeout:  timeout,
	}
}

func (p *SocketChronicleProxyClient) getConnection() error {
	if p.rpc == nil {
		conn, err := net.DialTimeout("tcp", p.nodeAddr, p.timeout)

		if err != nil {
			return err
		}

		p.rpc = jsonrpc.NewClient(conn)
	}

	return nil
}

// Submit calls Chronicle.Submit on the node.
func (p *SocketChronicleProxyClient) Submit(objectType string, data []byte) (bool, error) {
	p.l.Lock()
	defer p.l.Unlock()

	if err := p.getConnection(); err != nil {
		return false, err
	}

	var ack bool

	err := p.rpc.Call("Chronicle.Submit", proto.Submission{Type: objectType, Data: data}, &ack)

	if err != nil {
		p.rpc.Close()
		p.rpc = nil

		return false, err
	}

	return ack, nil
}

func (p *SocketChronicleProxyClient) close() {
	p.l.Lock()
	defer p.l.Unlock()

	if p.rpc != nil {
		p.rpc.Close()
		p.rpc = nil
	}
}
