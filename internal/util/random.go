package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

var nonceAlphabet = []rune("0123456789abcdefghijklmnopqrstuvwxyz")

// RandomNonce returns n random characters drawn from the base-36 alphabet.
func RandomNonce(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		idx, err := RandomIntn(len(nonceAlphabet))
		if err != nil {
			return "", fmt.Errorf("generating random nonce index: %w", err)
		}
		sb.WriteRune(nonceAlphabet[idx])
	}
	return sb.String(), nil
}

func RandomIntn(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generating random number: %w", err)
	}
	return int(n.Int64()), nil
}
