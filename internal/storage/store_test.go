package storage

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerstack/ledgerstack/internal/common"
)

func newStore(t *testing.T, maxBytes int64) *DiskStore {
	t.Helper()
	s, err := NewDiskStore(t.TempDir(), "http://localhost:8080", "test-secret", maxBytes, nil)
	require.NoError(t, err)
	return s
}

func TestPutAndOpen(t *testing.T) {
	s := newStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "owner/doc.pdf", "application/pdf", strings.NewReader("%PDF-1.4 data")))

	f, err := s.Open(ctx, "owner/doc.pdf")
	require.NoError(t, err)
	defer f.Close()

	b, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 data", string(b))
}

func TestPutEnforcesSizeLimit(t *testing.T) {
	s := newStore(t, 8)
	ctx := context.Background()

	err := s.Put(ctx, "owner/big.pdf", "application/pdf", strings.NewReader("well over eight bytes"))
	require.ErrorIs(t, err, common.ErrStorage)

	// The partial object must not survive.
	_, err = s.Open(ctx, "owner/big.pdf")
	require.Error(t, err)
}

func TestPathTraversalKeyRejected(t *testing.T) {
	s := newStore(t, 0)
	ctx := context.Background()

	err := s.Put(ctx, "../../etc/passwd", "application/pdf", strings.NewReader("x"))
	require.Error(t, err)
}

func TestDeleteMissingObject(t *testing.T) {
	s := newStore(t, 0)
	err := s.Delete(context.Background(), "owner/nope.pdf")
	require.ErrorIs(t, err, common.ErrStorage)
}

func TestDeletePrefix(t *testing.T) {
	s := newStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "alice/a.pdf", "application/pdf", strings.NewReader("a")))
	require.NoError(t, s.Put(ctx, "alice/b.pdf", "application/pdf", strings.NewReader("b")))
	require.NoError(t, s.Put(ctx, "bob/c.pdf", "application/pdf", strings.NewReader("c")))

	n, err := s.DeletePrefix(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Open(ctx, "alice/a.pdf")
	require.Error(t, err)

	// Other prefixes stay intact.
	f, err := s.Open(ctx, "bob/c.pdf")
	require.NoError(t, err)
	f.Close()
}

func TestDeletePrefixMissingIsZero(t *testing.T) {
	s := newStore(t, 0)
	n, err := s.DeletePrefix(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSignedGetURLRoundTrip(t *testing.T) {
	s := newStore(t, 0)

	raw, err := s.SignedGetURL("owner/doc.pdf", 5*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/objects/owner/doc.pdf", u.Path)

	exp, err := strconv.ParseInt(u.Query().Get("exp"), 10, 64)
	require.NoError(t, err)
	sig := u.Query().Get("sig")
	require.NotEmpty(t, sig)

	assert.True(t, s.ValidateSignedPath(u.Path, exp, sig))
}

func TestSignedURLExpiryAndTamper(t *testing.T) {
	s := newStore(t, 0)
	path := "/objects/owner/doc.pdf"

	past := time.Now().Add(-time.Minute).Unix()
	assert.False(t, s.ValidateSignedPath(path, past, computeSignature(path, past, "test-secret")), "expired even with a valid signature")

	future := time.Now().Add(time.Minute).Unix()
	goodSig := computeSignature(path, future, "test-secret")
	assert.True(t, s.ValidateSignedPath(path, future, goodSig))

	assert.False(t, s.ValidateSignedPath(path, future, goodSig+"x"), "tampered signature")
	assert.False(t, s.ValidateSignedPath("/objects/owner/other.pdf", future, goodSig), "signature bound to path")
	assert.False(t, s.ValidateSignedPath(path, future+1, goodSig), "signature bound to expiry")
}

func TestSignatureWrongSecret(t *testing.T) {
	path := "/objects/owner/doc.pdf"
	exp := time.Now().Add(time.Minute).Unix()
	sig := computeSignature(path, exp, "secret-a")
	assert.False(t, ValidateSignature(path, exp, sig, "secret-b"))
}
