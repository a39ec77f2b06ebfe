package store

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// Delivered is an object handed to the application, with its position in the
// delivery sequence.
type Delivered struct {
	Index       int
	Timestamp   int64
	Payload     []byte
	Signatures  []byte
	DeliveredAt int64
}

// Marshal encodes the record for persistence.
func (d *Delivered) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, new(codec.MsgpackHandle))

	if err := enc.Encode(d); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal decodes a record produced by Marshal.
func (d *Delivered) Unmarshal(data []byte) error {
	dec := codec.NewDecoderBytes(data, new(codec.MsgpackHandle))

	return dec.Decode(d)
}

// Store archives delivered objects in delivery order.
type Store interface {
	CacheSize() int
	LastIndex() int
	Append(*Delivered) (int, error)
	Get(index int) (*Delivered, error)
	Since(skip int) ([]*Delivered, error)
	StorePath() string
	Close() error
}
