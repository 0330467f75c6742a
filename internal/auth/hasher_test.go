package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(4) // min cost keeps the test fast

	digest, err := h.Hash("482913")
	require.NoError(t, err)
	require.NotEmpty(t, digest)
	assert.NotEqual(t, "482913", digest, "digest must not contain the plaintext")

	ok, err := h.Verify("482913", digest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasher_MismatchIsNotAnError(t *testing.T) {
	h := NewHasher(4)

	digest, err := h.Hash("482913")
	require.NoError(t, err)

	ok, err := h.Verify("000000", digest)
	require.NoError(t, err, "a plain mismatch must not surface as an error")
	assert.False(t, ok)
}

func TestHasher_CorruptDigestIsInfrastructureFailure(t *testing.T) {
	h := NewHasher(4)

	ok, err := h.Verify("482913", "not-a-bcrypt-digest")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHashingFailed)
	assert.False(t, ok)
}

func TestHasher_SameSecretDifferentDigests(t *testing.T) {
	h := NewHasher(4)

	d1, err := h.Hash("482913")
	require.NoError(t, err)
	d2, err := h.Hash("482913")
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2, "bcrypt salts must differ per hash")
}
