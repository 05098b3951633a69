package auth

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec("")
	assert.ErrorIs(t, err, ErrNoSecretKey)
}

func TestMintShape(t *testing.T) {
	codec, err := NewCodec("test-secret")
	require.NoError(t, err)

	token, err := codec.Mint("hunter2", "item-1")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]{8}-[0-9a-f]{128}$`), token)
}

func TestVerifyRoundTrip(t *testing.T) {
	codec, err := NewCodec("test-secret")
	require.NoError(t, err)

	token, err := codec.Mint("hunter2", "item-1")
	require.NoError(t, err)

	assert.True(t, codec.Verify(token, "hunter2", "item-1"))
}

func TestVerifyBindsItemID(t *testing.T) {
	codec, err := NewCodec("test-secret")
	require.NoError(t, err)

	token, err := codec.Mint("hunter2", "item-1")
	require.NoError(t, err)

	// A token minted for one item must not open another.
	assert.False(t, codec.Verify(token, "hunter2", "item-2"))
}

func TestVerifyBindsPassword(t *testing.T) {
	codec, err := NewCodec("test-secret")
	require.NoError(t, err)

	token, err := codec.Mint("hunter2", "item-1")
	require.NoError(t, err)

	assert.False(t, codec.Verify(token, "wrong", "item-1"))
}

func TestVerifyRejectsTamperedDigest(t *testing.T) {
	codec, err := NewCodec("test-secret")
	require.NoError(t, err)

	token, err := codec.Mint("hunter2", "item-1")
	require.NoError(t, err)

	last := token[len(token)-1]
	flipped := byte('0')
	if last == '0' {
		flipped = '1'
	}
	tampered := token[:len(token)-1] + string(flipped)
	assert.False(t, codec.Verify(tampered, "hunter2", "item-1"))
}

func TestVerifyRejectsMalformedShape(t *testing.T) {
	codec, err := NewCodec("test-secret")
	require.NoError(t, err)

	for _, tok := range []string{
		"",
		"not-a-token",
		"abcd1234" + strings.Repeat("f", 128),  // missing separator
		"ABCD1234-" + strings.Repeat("f", 128), // uppercase nonce
		"abcd1234-" + strings.Repeat("f", 127), // short digest
		"abcd1234-" + strings.Repeat("f", 127) + "G",    // non-hex digest
		"abcd123-" + strings.Repeat("f", 128),           // short nonce
		"abcd1234-" + strings.Repeat("f", 128) + "\x00", // trailing byte
	} {
		assert.False(t, codec.Verify(tok, "hunter2", "item-1"), "token %q", tok)
	}
}

func TestDifferentSecretsDisagree(t *testing.T) {
	a, err := NewCodec("secret-a")
	require.NoError(t, err)
	b, err := NewCodec("secret-b")
	require.NoError(t, err)

	token, err := a.Mint("hunter2", "item-1")
	require.NoError(t, err)

	assert.False(t, b.Verify(token, "hunter2", "item-1"))
}
