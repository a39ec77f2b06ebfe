package proxy

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// Object is the envelope of an application payload. Type selects the
// delivery handler.
type Object struct {
	Type string
	Data []byte
}

func msgpackHandle() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	mh.Canonical = true
	return mh
}

// Marshal encodes the object into a payload.
func (o *Object) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, msgpackHandle())

	if err := enc.Encode(o); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal decodes a payload produced by Marshal.
func (o *Object) Unmarshal(data []byte) error {
	dec := codec.NewDecoderBytes(data, msgpackHandle())

	return dec.Decode(o)
}

// NewObject returns the payload of an object of the given type.
func NewObject(objectType string, data []byte) ([]byte, error) {
	o := &Object{Type: objectType, Data: data}
	return o.Marshal()
}

// TypeOf returns the declared type of a payload, or "" if the payload is not
// an Object.
func TypeOf(payload []byte) string {
	var o Object
	if err := o.Unmarshal(payload); err != nil {
		return ""
	}
	return o.Type
}
