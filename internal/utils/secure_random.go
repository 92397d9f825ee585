package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateSecureRandomString returns n characters drawn with crypto/rand from the
// reference alphabet (no 0/O or 1/I).
func GenerateSecureRandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	limit := big.NewInt(int64(len(referenceAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		b[i] = referenceAlphabet[idx.Int64()]
	}
	return string(b), nil
}

// GenerateReferenceNumber builds a customer facing transfer reference such as
// TRF-20240301-7KQ2M9XWAB.
func GenerateReferenceNumber(now time.Time) (string, error) {
	suffix, err := GenerateSecureRandomString(10)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TRF-%s-%s", now.UTC().Format("20060102"), suffix), nil
}
