package logstore

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/sigstore/sigstore/pkg/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/store"
)

func newKeys(t *testing.T) (signature.Signer, signature.Verifier) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := signature.LoadED25519Signer(priv)
	require.NoError(t, err)
	verifier, err := signature.LoadED25519Verifier(pub)
	require.NoError(t, err)
	return signer, verifier
}

func TestEntry_SignVerify(t *testing.T) {
	signer, verifier := newKeys(t)
	_, otherVerifier := newKeys(t)

	e := entry{
		Seq:   3,
		Type:  store.ChangePut,
		Path:  "/a.txt",
		Size:  5,
		Mtime: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, e.sign(signer))
	require.NotEmpty(t, e.Sig)

	assert.NoError(t, e.verify(verifier))

	err := e.verify(otherVerifier)
	require.Error(t, err)
	assert.Equal(t, verrors.CodeInternal, verrors.GetCode(err))

	changed := e
	changed.Size = 6
	assert.Error(t, changed.verify(verifier))
}

func TestEntry_EncodeDecode(t *testing.T) {
	signer, verifier := newKeys(t)

	entries := []entry{
		{Seq: 0, Type: store.ChangePut, Path: "/dir", Dir: true, Mtime: time.Unix(10, 0).UTC()},
		{Seq: 1, Type: store.ChangeDelete, Path: "/dir", Dir: true, Mtime: time.Unix(20, 0).UTC()},
	}
	for i := range entries {
		require.NoError(t, entries[i].sign(signer))
	}

	data, err := encodeEntries(entries)
	require.NoError(t, err)

	decoded, err := decodeEntries(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for _, e := range decoded {
		assert.NoError(t, e.verify(verifier), "entry %d survives a round trip through the log", e.Seq)
	}
}
