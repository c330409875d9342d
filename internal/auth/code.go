// Package auth implements the identity and session core: code
// generation, password hashing, session tokens, the revocation
// registry, and the Service that ties them together.
package auth

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

// Charset for the phase-2 continuation token: upper-case alphanumeric,
// distinct from the all-decimal reset code form.
const resetTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const resetTokenLength = 6

// NewVerificationCode returns a 6-digit decimal code uniformly sampled
// from [100000, 999999]. No uniqueness is guaranteed or needed:
// collisions across accounts are fine, and a collision within one
// account simply overwrites the previous code.
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

// NewResetToken returns the short upper-case token that replaces a
// consumed reset code between recovery phases 2 and 3.
func NewResetToken() (string, error) {
	buf := make([]byte, resetTokenLength)
	max := big.NewInt(int64(len(resetTokenAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = resetTokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}
