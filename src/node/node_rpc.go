package node

import (
	"fmt"

	"github.com/mosaicnetworks/chronicle/src/net"
	"github.com/mosaicnetworks/chronicle/src/node/state"
	"github.com/mosaicnetworks/chronicle/src/peers"
	"github.com/mosaicnetworks/chronicle/src/pipeline"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrNotMember is returned when a request is abandoned because its target is
// no longer a member.
var ErrNotMember = errors.New("target is no longer a member")

// withRetries calls fn up to MaxRetries times. Each attempt is abandoned if
// the target has left the membership in the meantime. When every attempt
// fails, the node goes offline.
func (n *Node) withRetries(target *peers.Peer, name string, fn func() error) error {
	var err error
	for i := 0; i < n.conf.MaxRetries; i++ {
		if n.GetState() == state.Shutdown {
			return fmt.Errorf("node is shutting down")
		}
		if !n.core.Registry().Contains(target) {
			return errors.Wrapf(ErrNotMember, "%s to %s", name, target)
		}

		if err = fn(); err == nil {
			return nil
		}

		n.logger.WithFields(logrus.Fields{
			"target":  target.String(),
			"attempt": i + 1,
			"error":   err,
		}).Debug(name)
	}

	n.goOffline()

	return errors.Wrapf(err, "%s to %s failed %d times", name, target, n.conf.MaxRetries)
}

func (n *Node) requestForward(target *peers.Peer, certify bool, objects []pipeline.ObjToNode) (net.ForwardResponse, error) {
	args := net.ForwardRequest{
		FromAddr: n.trans.AdvertiseAddr(),
		Certify:  certify,
		Objects:  objects,
	}

	var out net.ForwardResponse

	err := n.withRetries(target, "Forward", func() error {
		out = net.ForwardResponse{}
		return n.trans.Forward(target.NetAddr, &args, &out)
	})

	return out, err
}

func (n *Node) requestQuorum(target *peers.Peer, vector pipeline.TimestampVector) (net.QuorumResponse, error) {
	args := net.QuorumRequest{
		FromAddr: n.trans.AdvertiseAddr(),
		Vector:   vector,
	}

	var out net.QuorumResponse

	err := n.withRetries(target, "Quorum", func() error {
		return n.trans.Quorum(target.NetAddr, &args, &out)
	})

	return out, err
}

func (n *Node) requestMembers(target *peers.Peer) (net.MembersResponse, error) {
	args := net.MembersRequest{
		FromAddr: n.trans.AdvertiseAddr(),
	}

	var out net.MembersResponse

	err := n.trans.Members(target.NetAddr, &args, &out)

	return out, err
}

func (n *Node) requestJoin(target *peers.Peer, timestamp int64) (net.JoinResponse, error) {
	args := net.JoinRequest{
		Peer:      n.core.Self(),
		Timestamp: timestamp,
	}

	var out net.JoinResponse

	err := n.withRetries(target, "Join", func() error {
		return n.trans.Join(target.NetAddr, &args, &out)
	})

	return out, err
}

func (n *Node) requestLeave(target *peers.Peer, timestamp int64) (net.LeaveResponse, error) {
	args := net.LeaveRequest{
		Peer:      n.core.Self(),
		Timestamp: timestamp,
	}

	var out net.LeaveResponse

	err := n.trans.Leave(target.NetAddr, &args, &out)

	return out, err
}

func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.ForwardRequest:
		n.processForwardRequest(rpc, cmd)
	case *net.QuorumRequest:
		n.processQuorumRequest(rpc, cmd)
	case *net.MembersRequest:
		n.processMembersRequest(rpc, cmd)
	case *net.JoinRequest:
		n.processJoinRequest(rpc, cmd)
	case *net.LeaveRequest:
		n.processLeaveRequest(rpc, cmd)
	default:
		n.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

// sender resolves the member behind an advertised address.
func (n *Node) sender(addr string) *peers.Peer {
	p, ok := n.core.Registry().ByIP(peers.AddrToIP(addr))
	if !ok {
		return nil
	}
	return p
}

func (n *Node) processForwardRequest(rpc net.RPC, cmd *net.ForwardRequest) {
	n.logger.WithFields(logrus.Fields{
		"from":    cmd.FromAddr,
		"certify": cmd.Certify,
		"objects": len(cmd.Objects),
	}).Debug("process ForwardRequest")

	vector := n.core.ReceiveFromPeer(cmd.Objects, n.sender(cmd.FromAddr))

	rpc.Respond(&net.ForwardResponse{Signatures: vector}, nil)
}

func (n *Node) processQuorumRequest(rpc net.RPC, cmd *net.QuorumRequest) {
	n.logger.WithFields(logrus.Fields{
		"from":    cmd.FromAddr,
		"quorums": len(cmd.Vector),
	}).Debug("process QuorumRequest")

	accepted := n.core.ReceiveQuorum(cmd.Vector, n.sender(cmd.FromAddr))

	rpc.Respond(&net.QuorumResponse{Accepted: accepted}, nil)
}

func (n *Node) processMembersRequest(rpc net.RPC, cmd *net.MembersRequest) {
	n.logger.WithField("from", cmd.FromAddr).Debug("process MembersRequest")

	rpc.Respond(&net.MembersResponse{Peers: n.core.Registry().ListWithPending()}, nil)
}

func (n *Node) processJoinRequest(rpc net.RPC, cmd *net.JoinRequest) {
	if cmd.Peer == nil {
		rpc.Respond(&net.JoinResponse{Accepted: false}, nil)
		return
	}

	cmd.Peer.Normalize()

	n.logger.WithFields(logrus.Fields{
		"peer":      cmd.Peer.String(),
		"timestamp": cmd.Timestamp,
	}).Debug("process JoinRequest")

	if cmd.Peer.PublicKey() == nil {
		rpc.Respond(&net.JoinResponse{Accepted: false}, nil)
		return
	}

	registry := n.core.Registry()
	registry.AddWithDelay(cmd.Peer, cmd.Timestamp)

	rpc.Respond(&net.JoinResponse{
		Accepted: true,
		Peers:    registry.ListWithPending(),
	}, nil)
}

func (n *Node) processLeaveRequest(rpc net.RPC, cmd *net.LeaveRequest) {
	if cmd.Peer == nil {
		rpc.Respond(&net.LeaveResponse{Accepted: false}, nil)
		return
	}

	cmd.Peer.Normalize()

	n.logger.WithFields(logrus.Fields{
		"peer":      cmd.Peer.String(),
		"timestamp": cmd.Timestamp,
	}).Debug("process LeaveRequest")

	n.core.Registry().Remove(cmd.Peer, cmd.Timestamp)

	rpc.Respond(&net.LeaveResponse{Accepted: true}, nil)
}
