package node

import (
	"crypto/ecdsa"

	"github.com/mosaicnetworks/chronicle/src/crypto/keys"
	"github.com/mosaicnetworks/chronicle/src/peers"
)

// Validator holds the private key controlling a node. Every element the node
// certifies or co-signs is signed with it.
type Validator struct {
	Key     *ecdsa.PrivateKey
	Moniker string

	pubHex string
}

// NewValidator is a factory method for a Validator
func NewValidator(key *ecdsa.PrivateKey, moniker string) *Validator {
	return &Validator{
		Key:     key,
		Moniker: moniker,
	}
}

// PublicKeyHex returns the validator's public key as a hex string
func (v *Validator) PublicKeyHex() string {
	if len(v.pubHex) == 0 {
		v.pubHex = keys.PublicKeyHex(&v.Key.PublicKey)
	}
	return v.pubHex
}

// Peer returns the member this validator is, reachable at netAddr.
func (v *Validator) Peer(netAddr string) *peers.Peer {
	return peers.NewPeer(v.PublicKeyHex(), netAddr, v.Moniker)
}

// Sign signs a digest.
func (v *Validator) Sign(hash []byte) ([]byte, error) {
	return keys.Sign(v.Key, hash)
}
