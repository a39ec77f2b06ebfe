// Package pipeline holds the in-flight state of the dissemination engine.
//
// The Pipeline is the ordered buffer of elements, sorted by decentralized
// timestamp then payload, each entry tagged with the dissemination levels it
// reached and the peers it was exchanged with. Standby holds the level-1
// elements a node co-signed while it waits for their quorum, and Quorums holds
// the co-signatures an originator collects for its own elements.
//
// Elements travel between nodes as ObjToNode envelopes. Co-signatures travel
// as TimestampVectors keyed by short hash.
package pipeline
