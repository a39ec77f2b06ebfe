package peers

import (
	"crypto/ecdsa"
	"encoding/binary"
	"net"

	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/mosaicnetworks/chronicle/src/crypto/keys"
)

// Peer is a member of the network. Two peers are the same member when they
// share an IP; the IP is also the sort key of the membership list, and
// therefore decides each peer's position in the topology grid.
type Peer struct {
	NetAddr   string `json:"NetAddr"`
	PubKeyHex string `json:"PubKeyHex"`
	Moniker   string `json:"Moniker"`
	IP        uint32 `json:"IP,omitempty"`

	// PendingSince is the announce timestamp of a peer that is still inside
	// its join grace window. Zero for active peers.
	PendingSince int64 `json:"PendingSince,omitempty"`

	pubKey *ecdsa.PublicKey
}

// NewPeer creates a Peer and derives its IP from the network address.
func NewPeer(pubKeyHex, netAddr, moniker string) *Peer {
	peer := &Peer{
		PubKeyHex: common.NormalizeHex(pubKeyHex),
		NetAddr:   netAddr,
		Moniker:   moniker,
	}

	peer.Normalize()

	return peer
}

// Normalize fills the derived fields of a peer that was decoded from JSON or
// from the wire. It must be called before the peer is shared.
func (p *Peer) Normalize() {
	p.PubKeyHex = common.NormalizeHex(p.PubKeyHex)
	if p.IP == 0 {
		p.IP = AddrToIP(p.NetAddr)
	}
	p.pubKey = keys.ParsePublicKeyHex(p.PubKeyHex)
}

// PublicKey returns the parsed public key, or nil if PubKeyHex is invalid.
func (p *Peer) PublicKey() *ecdsa.PublicKey {
	if p.pubKey == nil {
		return keys.ParsePublicKeyHex(p.PubKeyHex)
	}
	return p.pubKey
}

// Equal reports whether p and o designate the same member.
func (p *Peer) Equal(o *Peer) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.IP == o.IP
}

// String returns the moniker and address, for logs.
func (p *Peer) String() string {
	if p.Moniker != "" {
		return p.Moniker + "@" + p.NetAddr
	}
	return p.NetAddr
}

// AddrToIP returns the numeric IPv4 of a host:port address. Addresses that do
// not carry an IPv4 host, such as in-memory transport addresses, are mapped to
// a hash of the whole address so they still get a stable position.
func AddrToIP(addr string) uint32 {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if ip := net.ParseIP(host).To4(); ip != nil {
		return binary.BigEndian.Uint32(ip)
	}
	return common.Hash32([]byte(addr))
}

// ByIP implements sort.Interface for peers based on the IP field.
type ByIP []*Peer

func (a ByIP) Len() int           { return len(a) }
func (a ByIP) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ByIP) Less(i, j int) bool { return a[i].IP < a[j].IP }

// ExcludePeer is used to exclude a single peer from a list of peers. It
// returns the index of the excluded peer, or -1.
func ExcludePeer(peers []*Peer, peer *Peer) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if !p.Equal(peer) {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}

// IndexOf returns the position of peer in a list sorted by IP, or -1.
func IndexOf(sorted []*Peer, peer *Peer) int {
	for i, p := range sorted {
		if p.Equal(peer) {
			return i
		}
	}
	return -1
}

// SameSet reports whether a and b contain exactly the same members,
// regardless of order.
func SameSet(a, b []*Peer) bool {
	if len(a) != len(b) {
		return false
	}
	in := make(map[uint32]struct{}, len(a))
	for _, p := range a {
		in[p.IP] = struct{}{}
	}
	if len(in) != len(a) {
		return false
	}
	seen := make(map[uint32]struct{}, len(b))
	for _, p := range b {
		if _, ok := in[p.IP]; !ok {
			return false
		}
		seen[p.IP] = struct{}{}
	}
	return len(seen) == len(in)
}
