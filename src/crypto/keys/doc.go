// Package keys implements the public key cryptography used by chronicle nodes.
//
// Every node owns a secp256k1 key-pair. The private key signs the
// certification hash of objects the node forwards or co-signs; the public key,
// published in the membership list, lets every other node verify those
// signatures. Signatures travel as fixed 64-byte r‖s blobs.
package keys
