package inmem

import (
	"github.com/mosaicnetworks/chronicle/src/proxy"
	"github.com/sirupsen/logrus"
)

// InmemProxy implements the AppProxy interface natively.
type InmemProxy struct {
	dispatcher *proxy.Dispatcher
	submitCh   chan []byte
	logger     *logrus.Entry
}

// NewInmemProxy creates an InmemProxy. If no logger is given, a new one is
// created.
func NewInmemProxy(logger *logrus.Entry) *InmemProxy {
	if logger == nil {
		l := logrus.New()
		l.Level = logrus.DebugLevel
		logger = logrus.NewEntry(l)
	}

	return &InmemProxy{
		dispatcher: proxy.NewDispatcher(),
		submitCh:   make(chan []byte),
		logger:     logger.WithField("prefix", "proxy"),
	}
}

// Submit is called by the App to submit a raw payload to the node.
func (p *InmemProxy) Submit(payload []byte) {
	t := make([]byte, len(payload))
	copy(t, payload)

	p.submitCh <- t
}

// SubmitObject wraps data in an Object of the given type and submits it.
func (p *InmemProxy) SubmitObject(objectType string, data []byte) error {
	payload, err := proxy.NewObject(objectType, data)
	if err != nil {
		return err
	}
	p.Submit(payload)
	return nil
}

// SubmitCh returns the channel of submitted payloads.
func (p *InmemProxy) SubmitCh() chan []byte {
	return p.submitCh
}

// Register binds a delivery handler to an object type.
func (p *InmemProxy) Register(objectType string, handler proxy.DeliveryHandler) error {
	return p.dispatcher.Register(objectType, handler)
}

// Deliver dispatches a delivered payload to its handler.
func (p *InmemProxy) Deliver(payload []byte, timestamp int64) error {
	err := p.dispatcher.Dispatch(payload, timestamp)

	p.logger.WithFields(logrus.Fields{
		"timestamp": timestamp,
		"type":      proxy.TypeOf(payload),
		"err":       err,
	}).Debug("Deliver")

	return err
}
