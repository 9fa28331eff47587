// Package logstore is the in-tree store.Driver: an append-only, signed log
// of file mutations with content kept as CID-addressed blocks.
//
// Each vault is identified by an ed25519 public key. The process that holds
// the matching private key may append; every other handle is a replica that
// receives entries from peers on the same Network and verifies their
// signatures before applying them.
//
// On disk (or in memory for temporary vaults) a vault is laid out as:
//
//	.dweb/key           hex public key
//	.dweb/secret_key    hex private key, owners only
//	.dweb/metadata.log  one JSON entry per line
//	.dweb/blocks/       content blocks, see package blockfs
//
// Network is an in-process rendezvous that connects handles sharing a key.
// It stands in for peer discovery and transport inside one process and does
// not speak any wire protocol.
package logstore
