// Package proto defines the messages exchanged between a node and a remote
// application over the socket proxy.
package proto

// Delivery is an object leaving the sync window, sent to the application.
type Delivery struct {
	Type      string
	Data      []byte
	Timestamp int64
}

// Submission is an object submitted by the application. An empty Type
// submits Data as a raw payload.
type Submission struct {
	Type string
	Data []byte
}
