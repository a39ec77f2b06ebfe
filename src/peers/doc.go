// Package peers defines the members of a chronicle network and the Membership
// Registry that tracks them.
//
// A member is identified by its IP. The registry keeps active members sorted
// by IP because that order decides where each member sits in the topology
// grid, so every node must derive the same order from the same membership.
//
// Membership changes take time to propagate. To let nodes with slightly
// different views still agree on topology, the registry keeps announced
// joiners in a pending list for a join grace period before activating them,
// and keeps departed members in a recently-left list for a leave grace period.
// Both transitions are deferred tasks on a single queue, run by Poll.
//
// Upon starting up, a node reads the bootstrap membership from the peers.json
// file in its data directory.
package peers
