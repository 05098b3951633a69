package auth

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"regexp"

	"golang.org/x/crypto/blake2b"

	"github.com/vvbbnn00/onedrive-index/internal/util"
)

// ErrNoSecretKey is returned when the token secret key is not configured.
// Minting or verifying without a key must fail loudly, never silently
// produce an insecure token.
var ErrNoSecretKey = errors.New("auth: secret key not configured")

const nonceLength = 8

// tokenShape is the required token format: an 8-character base-36 nonce,
// a dash, and a 128-hex-character MAC. Anything else is rejected before any
// MAC computation.
var tokenShape = regexp.MustCompile(`^[a-z0-9]{8}-[0-9a-f]{128}$`)

// Codec mints and verifies per-file access tokens. A token proves the holder
// knows a gate's password and is requesting one specific file; binding to
// the file id prevents reuse across files within the same protected folder.
//
// Tokens are never stored: they are derived deterministically and verified
// by recomputation.
type Codec struct {
	key []byte
}

// NewCodec creates a token codec keyed by the site secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrNoSecretKey
	}
	return &Codec{key: deriveKey("odpt", secret)}, nil
}

// Mint returns a token bound to (password, fileID) with a fresh nonce.
func (c *Codec) Mint(password, fileID string) (string, error) {
	nonce, err := util.RandomNonce(nonceLength)
	if err != nil {
		return "", err
	}
	return c.mint(nonce, password, fileID), nil
}

// Verify recomputes the MAC with the nonce extracted from token and compares
// the whole token in constant time. Malformed tokens are rejected outright.
func (c *Codec) Verify(token, password, fileID string) bool {
	if !tokenShape.MatchString(token) {
		return false
	}
	expected := c.mint(token[:nonceLength], password, fileID)
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

func (c *Codec) mint(nonce, password, fileID string) string {
	h, err := blake2b.New512(c.key)
	if err != nil {
		// The derived key is always a valid MAC key length.
		panic(err)
	}
	io.WriteString(h, nonce+"/"+password+"/"+fileID)
	return nonce + "-" + hex.EncodeToString(h.Sum(nil))
}

// deriveKey stretches the site secret into a fixed-size key, domain
// separated per use so the token MAC and the id cipher never share one.
func deriveKey(context, secret string) []byte {
	sum := blake2b.Sum256([]byte(context + "\x00" + secret))
	return sum[:]
}
