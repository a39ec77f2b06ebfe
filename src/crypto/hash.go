package crypto

import (
	"crypto/sha256"
	"encoding/binary"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// TimestampHash returns SHA256(timestamp ‖ payload), with the timestamp in
// big-endian order. This is the digest every co-signer signs.
func TimestampHash(timestamp int64, payload []byte) []byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(timestamp))

	hasher := sha256.New()
	hasher.Write(ts[:])
	hasher.Write(payload)
	return hasher.Sum(nil)
}
