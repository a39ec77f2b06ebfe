// Package net implements the transports chronicle nodes use to talk to each
// other.
//
// A Transport sends five RPCs: Forward (a batch of envelopes for one level,
// optionally asking for co-signatures), Quorum (the signature sets collected
// by an originator), Members, Join and Leave. Incoming RPCs are exposed on the
// Consumer channel and answered through RPC.Respond.
//
// There are two implementations:
//
// - Inmem: in-memory transport used for testing
//
// - TCP: a NetworkTransport over plain TCP, with pooled connections and
// msgpack framing
//
// For TCP, BindAddr is the IP:PORT the node listens on, and AdvertiseAddr
// (optional) is the address other nodes should use when BindAddr is not
// reachable. The advertised address also decides the node's position in the
// topology, so it must be the same address other members know it by.
package net
