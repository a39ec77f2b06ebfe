package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"
)

// SignatureSize is the length of an encoded signature: r and s, each padded
// to 32 bytes.
const SignatureSize = 64

// Sign signs the hash with the private key and returns the fixed-size r‖s
// encoding.
func Sign(priv *ecdsa.PrivateKey, hash []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, priv, hash)
	if err != nil {
		return nil, err
	}
	return EncodeSignature(r, s), nil
}

// Verify verifies that sig is a valid signature of hash by the owner of the
// private key associated with pub.
func Verify(pub *ecdsa.PublicKey, hash []byte, sig []byte) bool {
	if pub == nil || pub.X == nil {
		return false
	}
	r, s, err := DecodeSignature(sig)
	if err != nil {
		return false
	}
	return ecdsa.Verify(pub, hash, r, s)
}

// EncodeSignature returns the r‖s encoding of a signature.
func EncodeSignature(r, s *big.Int) []byte {
	sig := make([]byte, SignatureSize)
	readBits(r, sig[:SignatureSize/2])
	readBits(s, sig[SignatureSize/2:])
	return sig
}

// DecodeSignature parses a signature as produced by EncodeSignature.
func DecodeSignature(sig []byte) (r, s *big.Int, err error) {
	if len(sig) != SignatureSize {
		return nil, nil, fmt.Errorf("wrong signature length: got %d, want %d", len(sig), SignatureSize)
	}
	r = new(big.Int).SetBytes(sig[:SignatureSize/2])
	s = new(big.Int).SetBytes(sig[SignatureSize/2:])
	return r, s, nil
}
