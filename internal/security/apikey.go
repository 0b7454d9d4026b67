package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"regexp"
)

const (
	// APIKeyTag prefixes every ingestion key so the format can be checked before any lookup.
	APIKeyTag = "ak_"
	// apiKeyEntropyBytes is the number of random bytes behind each key (hex-encoded to 64 chars).
	apiKeyEntropyBytes = 32
	// apiKeyPrefixLen is how much of the plaintext is kept in the open for display.
	apiKeyPrefixLen = 12
)

var apiKeyPattern = regexp.MustCompile(`^ak_[0-9a-f]{64}$`)

// GenerateAPIKey returns a new plaintext key "ak_" + hex(32 bytes from crypto/rand).
func GenerateAPIKey() (string, error) {
	b := make([]byte, apiKeyEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return APIKeyTag + hex.EncodeToString(b), nil
}

// HashAPIKey returns the hex SHA-256 of the plaintext key. The hash is the only stored and lookup form.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// APIKeyHashEqual performs constant-time comparison of the provided key's hash with the stored hash.
func APIKeyHashEqual(providedKey, storedHash string) bool {
	providedHash := HashAPIKey(providedKey)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}

// APIKeyPrefix returns the display prefix persisted alongside the hash, e.g. "ak_1a2b3c4d5...".
func APIKeyPrefix(key string) string {
	if len(key) <= apiKeyPrefixLen {
		return key + "..."
	}
	return key[:apiKeyPrefixLen] + "..."
}

// LooksLikeAPIKey reports whether s has the ak_<64 lowercase hex> shape.
func LooksLikeAPIKey(s string) bool {
	return apiKeyPattern.MatchString(s)
}
