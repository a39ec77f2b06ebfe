package pipeline

import (
	"bytes"

	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/mosaicnetworks/chronicle/src/crypto"
)

// Element is an application object with its decentralized timestamp. The
// timestamp is in Unix milliseconds; zero means it has not been assigned yet.
type Element struct {
	Timestamp int64
	Payload   []byte
}

// NewElement creates an Element.
func NewElement(timestamp int64, payload []byte) Element {
	return Element{Timestamp: timestamp, Payload: payload}
}

// Unset reports whether the element still waits for its timestamp.
func (e Element) Unset() bool {
	return e.Timestamp == 0
}

// Compare orders elements by timestamp, then by payload bytes.
func (e Element) Compare(o Element) int {
	switch {
	case e.Timestamp < o.Timestamp:
		return -1
	case e.Timestamp > o.Timestamp:
		return 1
	}
	return bytes.Compare(e.Payload, o.Payload)
}

// Hash returns the digest co-signers sign.
func (e Element) Hash() []byte {
	return crypto.TimestampHash(e.Timestamp, e.Payload)
}

// ShortHash returns the lookup key of the element in standby and quorum
// collections.
func (e Element) ShortHash() int32 {
	return common.ShortHash(e.Timestamp, e.Payload)
}
