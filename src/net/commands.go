package net

import (
	"github.com/mosaicnetworks/chronicle/src/peers"
	"github.com/mosaicnetworks/chronicle/src/pipeline"
)

// ForwardRequest carries a batch of envelopes for one level. When Certify is
// set the envelopes are level-1 elements the sender originated, and the
// receiver answers with its co-signatures.
type ForwardRequest struct {
	FromAddr string
	Certify  bool
	Objects  []pipeline.ObjToNode
}

// ForwardResponse acknowledges a ForwardRequest. Signatures holds the
// co-signatures of a Certify batch, keyed by short hash; it is empty when the
// receiver rejected every element.
type ForwardResponse struct {
	Signatures pipeline.TimestampVector
}

// QuorumRequest carries, per short hash, the encoded signature set collected
// by the originator of the elements.
type QuorumRequest struct {
	FromAddr string
	Vector   pipeline.TimestampVector
}

// QuorumResponse reports whether the quorum was accepted.
type QuorumResponse struct {
	Accepted bool
}

// MembersRequest asks a node for its view of the membership.
type MembersRequest struct {
	FromAddr string
}

// MembersResponse lists the active and pending members of the responder.
type MembersResponse struct {
	Peers []*peers.Peer
}

// JoinRequest announces a new member at Timestamp.
type JoinRequest struct {
	Peer      *peers.Peer
	Timestamp int64
}

// JoinResponse returns the responder's membership so that the joiner can
// bootstrap its registry.
type JoinResponse struct {
	Accepted bool
	Peers    []*peers.Peer
}

// LeaveRequest announces the departure of a member at Timestamp.
type LeaveRequest struct {
	Peer      *peers.Peer
	Timestamp int64
}

// LeaveResponse acknowledges a LeaveRequest.
type LeaveResponse struct {
	Accepted bool
}
