package proxy

// DeliveryHandler consumes a delivered object. Data is the application data
// of the object, timestamp its decentralized timestamp in Unix milliseconds.
type DeliveryHandler func(data []byte, timestamp int64)

// AppProxy is the interface between the node and the application. The
// application submits payloads on SubmitCh and receives, through Deliver, the
// objects leaving the sync window, in timestamp order.
type AppProxy interface {
	SubmitCh() chan []byte
	Register(objectType string, handler DeliveryHandler) error
	Deliver(payload []byte, timestamp int64) error
}
