// Package service implements the HTTP API of a chronicle node.
//
//	GET  /stats              rolling statistics
//	GET  /info               state summary
//	GET  /peers              active members
//	GET  /pending            pipeline entries
//	GET  /connections/{lvl}  neighbors at a level
//	GET  /delivered/{index}  archived object
//	POST /objects[?type=t]   submit an object
//	GET  /metrics            prometheus metrics
package service
