package common

import "fmt"

// RejectReason classifies why an incoming object or quorum was dropped.
// Rejections never travel back over the network; they are logged and counted.
type RejectReason uint32

const (
	// UnknownSender means the sending node is not a member.
	UnknownSender RejectReason = iota
	// UnknownSigner means a quorum signer could not be resolved to a member.
	UnknownSigner
	// BadSignature means a co-signature does not verify.
	BadSignature
	// ForgedSelfCertification means the sender's own signature does not
	// verify against its public key.
	ForgedSelfCertification
	// SignerSetMismatch means the signers are not the level-1 neighbors the
	// origin should have used.
	SignerSetMismatch
	// StaleQuorum means the quorum arrived after the signature timeout.
	StaleQuorum
	// OutOfTime means the timestamp is outside the acceptance window.
	OutOfTime
	// UnsetTimestamp means a peer sent an element without a timestamp.
	UnsetTimestamp
	// NoStandby means a quorum referenced an unknown or expired short hash.
	NoStandby
	// WrongOrigin means the quorum did not come from the node that asked for
	// the co-signature.
	WrongOrigin
	// Malformed means the envelope or signature blob could not be decoded.
	Malformed
)

var rejectReasons = []string{
	"Unknown Sender",
	"Unknown Signer",
	"Bad Signature",
	"Forged Self-Certification",
	"Signer Set Mismatch",
	"Stale Quorum",
	"Out Of Time",
	"Unset Timestamp",
	"No Standby",
	"Wrong Origin",
	"Malformed",
}

// String returns the human-readable reason.
func (r RejectReason) String() string {
	if int(r) < len(rejectReasons) {
		return rejectReasons[r]
	}
	return "Unknown"
}

// Rejection is the error produced by the certification checks.
type Rejection struct {
	Reason RejectReason
	Key    string
}

// NewRejection creates a Rejection for the given key, usually a short hash.
func NewRejection(reason RejectReason, key string) Rejection {
	return Rejection{Reason: reason, Key: key}
}

// Error implements the error interface.
func (r Rejection) Error() string {
	return fmt.Sprintf("rejected %s: %s", r.Key, r.Reason)
}

// IsRejection reports whether err is a Rejection with the given reason.
func IsRejection(err error, reason RejectReason) bool {
	rej, ok := err.(Rejection)
	return ok && rej.Reason == reason
}

// IsTiming reports whether err is a timing violation rather than a protocol
// violation. Timing violations feed the out-of-time counters.
func IsTiming(err error) bool {
	rej, ok := err.(Rejection)
	return ok && (rej.Reason == OutOfTime || rej.Reason == StaleQuorum)
}
