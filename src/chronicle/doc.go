// Package chronicle assembles a chronicle node from a config.Config: the
// private key and the bootstrap membership found in the data directory, the
// store of delivered objects, the TCP transport, the node itself and its HTTP
// service.
package chronicle
