package common

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// ShortHash folds the 64-bit xxhash of a timestamp and payload into 32 bits.
// It is a lookup key for standby objects and quorum collections, not a
// security primitive; signatures are always computed over the full SHA256.
func ShortHash(timestamp int64, payload []byte) int32 {
	d := xxhash.New()

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(timestamp))
	d.Write(ts[:])
	d.Write(payload)

	sum := d.Sum64()

	return int32(uint32(sum>>32) ^ uint32(sum))
}

// Hash32 returns the folded xxhash of arbitrary data. It is used to derive a
// numeric identity for addresses that do not carry an IPv4 host.
func Hash32(data []byte) uint32 {
	sum := xxhash.Sum64(data)
	return uint32(sum>>32) ^ uint32(sum)
}
