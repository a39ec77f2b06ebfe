// Package node implements a chronicle node.
//
// Core holds the protocol state: the pipeline of in-flight elements, the
// standby registry of elements co-signed for other nodes, and the quorum
// collections of the elements this node originated. It never performs I/O.
//
// Node drives the Core. It runs four periodic tasks, each in its own goroutine
// and protected against panics:
//
//	spool      (SpoolInterval)      sends pending elements, level by level
//	evict      (EvictionInterval)   delivers elements leaving the sync window
//	membership (MembershipInterval) applies due joins and departures
//	rollover   (StatsRollover)      starts a new statistics period
//
// and processes the RPC requests of other nodes.
//
// Certification
//
// A local element is stamped and self-signed when it is first spooled, and
// sent to the level-1 neighbors of this node. Each neighbor checks the sender,
// the signature and the age of the element, co-signs it and keeps it in
// standby. Once every neighbor replied, the origin sends them the joint
// signature set; each one checks it against the topology it expects the origin
// to have used and inserts the element, finalized, at level 2. From there the
// element floods the network through the neighbors of the following levels.
//
// A quorum that does not complete within SignatureTimeout is abandoned; the
// element gets a new timestamp at the next spool, up to
// MaxCertificationAttempts times.
//
// Membership
//
// A node listed in the bootstrap membership is active from the start. Any
// other node announces itself with JoinRequests and becomes active, at every
// member including itself, once the join grace window has passed. A leaving
// node sends LeaveRequests; its former peers keep it in their recently-left
// list for the leave grace window, so that quorums it signed still validate.
package node
