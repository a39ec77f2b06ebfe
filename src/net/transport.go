package net

// Transport provides an interface for network transports to allow a node to
// communicate with other nodes.
type Transport interface {

	// Listen starts the transport listening.
	Listen()

	// Consumer returns a channel that can be used to consume and respond to
	// RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address.
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us.
	AdvertiseAddr() string

	// Forward, Quorum, Members, Join and Leave send the appropriate RPC to
	// the target node.

	Forward(target string, args *ForwardRequest, resp *ForwardResponse) error

	Quorum(target string, args *QuorumRequest, resp *QuorumResponse) error

	Members(target string, args *MembersRequest, resp *MembersResponse) error

	Join(target string, args *JoinRequest, resp *JoinResponse) error

	Leave(target string, args *LeaveRequest, resp *LeaveResponse) error

	// Close permanently closes a transport, stopping any associated
	// goroutines and freeing other resources.
	Close() error
}
