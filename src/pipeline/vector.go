package pipeline

import (
	"bytes"
	"sort"

	"github.com/ugorji/go/codec"
)

// TimestampVector maps short hashes to signature blobs. A co-signer replies
// with its own signature per element; an originator broadcasts the encoded
// SignatureSet per element.
type TimestampVector map[int32][]byte

// SignatureSet maps the public key of each co-signer to its signature.
type SignatureSet map[string][]byte

// Signers returns the public keys of the set, sorted.
func (s SignatureSet) Signers() []string {
	res := make([]string, 0, len(s))
	for k := range s {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

func msgpackHandle() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	mh.Canonical = true
	return mh
}

// Marshal encodes the set in canonical msgpack, so every node produces the
// same bytes for the same set.
func (s SignatureSet) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, msgpackHandle())

	if err := enc.Encode(s); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// UnmarshalSignatureSet decodes a blob produced by Marshal.
func UnmarshalSignatureSet(data []byte) (SignatureSet, error) {
	s := make(SignatureSet)

	dec := codec.NewDecoderBytes(data, msgpackHandle())
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}

	return s, nil
}
