// Package topology maps the membership list onto a toroidal grid and derives
// the fan-out neighbors of each node per dissemination level.
//
// With N members sorted by IP, the grid side is ceil(sqrt(N)) and the member
// at index i sits at (i mod side, i div side). At level L a node forwards to
// the 8 cells of its Moore neighborhood at hop distance max(1, side/3^L), so
// level 1 spreads widest and later levels close in on nearby cells. Fan-out is
// bounded by 8 whatever the size of the network.
//
// The level-1 neighbors of an origin are also the quorum that must co-sign
// its timestamps, which is why ValidateConnectionAtLevel0 lets a node check a
// claimed signer set against its own view of the membership.
package topology
