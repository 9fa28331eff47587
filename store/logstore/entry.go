package logstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/sigstore/sigstore/pkg/signature"

	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/store"
)

// entry is one record of the metadata log.
type entry struct {
	Seq  int              `json:"seq"`
	Type store.ChangeType `json:"type"`
	Path string           `json:"path"`
	Dir  bool             `json:"dir,omitempty"`

	// Offset is the index of the first content block in the content feed.
	Offset int64     `json:"offset,omitempty"`
	Size   int64     `json:"size,omitempty"`
	Blocks []string  `json:"blocks,omitempty"`
	Mtime  time.Time `json:"mtime"`

	Sig []byte `json:"sig,omitempty"`
}

func (e entry) isFile() bool {
	return e.Type == store.ChangePut && !e.Dir
}

func (e entry) change() store.Change {
	return store.Change{Path: e.Path, Version: e.Seq + 1, Type: e.Type}
}

func (e entry) cids() ([]cid.Cid, error) {
	out := make([]cid.Cid, 0, len(e.Blocks))
	for _, s := range e.Blocks {
		id, err := cid.Decode(s)
		if err != nil {
			return nil, verrors.Wrapf(err, verrors.CodeInternal, "entry %d has an invalid block id", e.Seq)
		}
		out = append(out, id)
	}
	return out, nil
}

// payload is the signed form of the entry: everything except Sig.
func (e entry) payload() ([]byte, error) {
	e.Sig = nil
	return json.Marshal(e)
}

func (e *entry) sign(signer signature.Signer) error {
	p, err := e.payload()
	if err != nil {
		return err
	}
	sig, err := signer.SignMessage(bytes.NewReader(p))
	if err != nil {
		return verrors.Wrapf(err, verrors.CodeInternal, "failed to sign entry %d", e.Seq)
	}
	e.Sig = sig
	return nil
}

func (e entry) verify(verifier signature.Verifier) error {
	p, err := e.payload()
	if err != nil {
		return err
	}
	if err := verifier.VerifySignature(bytes.NewReader(e.Sig), bytes.NewReader(p)); err != nil {
		return verrors.WithContext(
			verrors.Wrapf(err, verrors.CodeInternal, "entry %d has an invalid signature", e.Seq),
			"seq", e.Seq,
		)
	}
	return nil
}

func encodeEntries(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeEntries(data []byte) ([]entry, error) {
	var out []entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, verrors.Wrapf(err, verrors.CodeInternal, "corrupt metadata log at entry %d", len(out))
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
