package pipeline

// ObjToNode is the wire envelope of an element forwarded to a neighbor.
//
// At level 1 Signature is the sender's signature of the element hash, which
// the receiver checks before co-signing. At higher levels it is the encoded
// SignatureSet of the finalized element.
type ObjToNode struct {
	Level     int
	Timestamp int64
	Payload   []byte
	Signature []byte
	ShortHash int32
}

// NewObjToNode packages el for level.
func NewObjToNode(el Element, level int, signature []byte) ObjToNode {
	return ObjToNode{
		Level:     level,
		Timestamp: el.Timestamp,
		Payload:   el.Payload,
		Signature: signature,
		ShortHash: el.ShortHash(),
	}
}

// Element returns the element carried by the envelope.
func (o ObjToNode) Element() Element {
	return Element{Timestamp: o.Timestamp, Payload: o.Payload}
}
