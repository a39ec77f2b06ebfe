package proxy

import (
	"fmt"
	"sort"
	"sync"
)

// ErrNoHandler is returned by Dispatch for objects whose type has no handler.
type ErrNoHandler struct {
	Type string
}

func (e ErrNoHandler) Error() string {
	return fmt.Sprintf("no delivery handler for type %q", e.Type)
}

// Dispatcher routes delivered objects to the handler registered for their
// type.
type Dispatcher struct {
	l        sync.RWMutex
	handlers map[string]DeliveryHandler
}

// NewDispatcher creates a Dispatcher with no handlers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]DeliveryHandler),
	}
}

// Register binds a handler to an object type. A type can only be bound once.
func (d *Dispatcher) Register(objectType string, handler DeliveryHandler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for type %q", objectType)
	}

	d.l.Lock()
	defer d.l.Unlock()

	if _, ok := d.handlers[objectType]; ok {
		return fmt.Errorf("type %q already has a delivery handler", objectType)
	}
	d.handlers[objectType] = handler
	return nil
}

// Types returns the registered object types, sorted.
func (d *Dispatcher) Types() []string {
	d.l.RLock()
	defer d.l.RUnlock()

	res := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		res = append(res, t)
	}
	sort.Strings(res)
	return res
}

// Dispatch decodes payload and calls the handler of its type. A panicking
// handler is reported as an error.
func (d *Dispatcher) Dispatch(payload []byte, timestamp int64) (err error) {
	var o Object
	if err := o.Unmarshal(payload); err != nil {
		return fmt.Errorf("decoding object: %v", err)
	}

	d.l.RLock()
	handler, ok := d.handlers[o.Type]
	d.l.RUnlock()

	if !ok {
		return ErrNoHandler{Type: o.Type}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery handler for type %q panicked: %v", o.Type, r)
		}
	}()

	handler(o.Data, timestamp)
	return nil
}
