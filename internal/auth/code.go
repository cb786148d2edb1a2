// Package auth — verification code generation.
package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// CodeLength is the fixed width of a verification code.
const CodeLength = 6

// CodeTTL is how long an issued verification code stays valid.
const CodeTTL = time.Hour

// codeSpace is 10^CodeLength — the number of possible codes.
var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random 6-digit verification code,
// zero-padded to fixed width ("042318" is a valid code).
//
// crypto/rand rather than math/rand: the code is a secret proving email
// control, and a uniform draw over 000000–999999 gives every code equal
// probability — unlike the common 100000+rand*900000 trick, which can never
// produce a leading zero.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("auth: generating verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}
