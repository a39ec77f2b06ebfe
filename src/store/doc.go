// Package store archives the objects a node delivered to its application, in
// delivery order, so they can be served back by index.
package store
