// Package blockfs is the persistence layer of the in-tree log store.
//
// It wraps go-billy's osfs (disk) and memfs (temporary vaults) behind one
// small FS type, and layers a content-addressed block store on top of it.
// Blocks are keyed by CIDv1 (raw codec, sha2-256 multihash) and stored under
// blocks/<last two cid chars>/<cid>.
//
// FS and CAS are safe for concurrent use.
package blockfs
