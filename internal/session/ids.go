package session

import (
	"crypto/rand"
	"fmt"
)

const (
	sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	sessionIDLength   = 8
	maxIDAttempts     = 16
)

// randomSessionID returns n characters drawn uniformly from sessionIDAlphabet.
// Bytes above the largest multiple of the alphabet size are rejected.
func randomSessionID(n int) (string, error) {
	const limit = byte(255 - (256 % len(sessionIDAlphabet)))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if b > limit {
				continue
			}
			out = append(out, sessionIDAlphabet[int(b)%len(sessionIDAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
