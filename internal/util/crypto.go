package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
)

const (
	// SecretLength is the number of characters in a portal bearer secret.
	SecretLength = 32
	// DigestPrefixLength is the number of hex characters of a digest used as a rate-limit key.
	DigestPrefixLength = 16

	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// largest multiple of len(secretAlphabet) that fits in a byte; bytes at or above it are
	// discarded so every character is equally likely
	secretRejectThreshold = 256 - (256 % len(secretAlphabet))
)

var secretPattern = regexp.MustCompile(`^[A-Za-z0-9]{32}$`)

// GenerateSecret returns a 32-character alphanumeric bearer secret drawn from crypto/rand.
func GenerateSecret() (string, error) {
	out := make([]byte, 0, SecretLength)
	buf := make([]byte, SecretLength*2)

	for len(out) < SecretLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= secretRejectThreshold {
				continue
			}
			out = append(out, secretAlphabet[int(b)%len(secretAlphabet)])
			if len(out) == SecretLength {
				break
			}
		}
	}

	return string(out), nil
}

// IsWellFormedSecret reports whether s has the exact shape produced by GenerateSecret.
func IsWellFormedSecret(s string) bool {
	return secretPattern.MatchString(s)
}

// HashToken returns the lowercase hex SHA-256 digest of token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// DigestPrefix returns the leading characters of a digest used to key rate limits.
func DigestPrefix(digest string) string {
	if len(digest) <= DigestPrefixLength {
		return digest
	}
	return digest[:DigestPrefixLength]
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskDigest shortens a digest for log output.
func MaskDigest(digest string) string {
	if len(digest) <= 8 {
		return "********"
	}
	return digest[:8] + "..."
}
