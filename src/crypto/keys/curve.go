package keys

import (
	"crypto/elliptic"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// Order of the secp256k1 group, used to validate parsed private keys.
var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

// Curve returns btcsuite's implementation of secp256k1, the curve used by
// Bitcoin and Ethereum keys.
func Curve() elliptic.Curve {
	return btcec.S256()
}
