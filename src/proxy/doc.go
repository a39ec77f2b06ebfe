// Package proxy defines AppProxy: the interface between a chronicle node and
// an application.
//
// Applications submit payloads to the node and register one DeliveryHandler
// per object type. Payloads are Objects: a type name and opaque data, encoded
// with msgpack. When an object leaves the sync window the node hands it to
// the proxy, which dispatches it to the handler of its type.
//
// The inmem subpackage provides an AppProxy for applications that embed the
// node as a Go dependency.
package proxy
