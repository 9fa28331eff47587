package blockfs

import (
	"errors"
	"io/fs"
	"path"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	// ErrBlockNotFound is returned by Get for an absent block.
	ErrBlockNotFound = errors.New("blockfs: block not found")
	// ErrBlockCorrupt is returned when stored bytes do not match their CID.
	ErrBlockCorrupt = errors.New("blockfs: block does not match its cid")
)

// CAS is an immutable block store keyed by CID.
type CAS struct {
	fs   *FS
	root string
}

// NewCAS returns a CAS storing blocks under root inside fsys.
func NewCAS(fsys *FS, root string) *CAS {
	return &CAS{fs: fsys, root: root}
}

// Sum returns the CIDv1 (raw, sha2-256) of data.
func Sum(data []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// Put stores data and returns its CID. Putting the same bytes twice is a
// no-op.
func (c *CAS) Put(data []byte) (cid.Cid, error) {
	id, err := Sum(data)
	if err != nil {
		return cid.Undef, err
	}
	return id, c.PutVerified(id, data)
}

// PutVerified stores data under id after checking they match.
func (c *CAS) PutVerified(id cid.Cid, data []byte) error {
	got, err := Sum(data)
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return ErrBlockCorrupt
	}

	if c.Has(id) {
		return nil
	}
	return c.fs.WriteFileAtomic(c.pathFor(id), data)
}

// Get returns the block stored under id, verifying its content.
func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	data, err := c.fs.ReadFile(c.pathFor(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	got, err := Sum(data)
	if err != nil {
		return nil, err
	}
	if !got.Equals(id) {
		return nil, ErrBlockCorrupt
	}
	return data, nil
}

// Has reports whether the block is stored locally.
func (c *CAS) Has(id cid.Cid) bool {
	ok, err := c.fs.Exists(c.pathFor(id))
	return err == nil && ok
}

func (c *CAS) pathFor(id cid.Cid) string {
	s := id.String()
	if len(s) < 2 {
		return path.Join(c.root, s)
	}
	return path.Join(c.root, s[len(s)-2:], s)
}
