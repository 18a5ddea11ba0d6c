package apikeys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// Prefix identifies gateway-issued keys.
	Prefix = "sk-or-v1-"

	suffixLength = 32
	alphabet     = "zxcvbnmasdfghjklqwertyuiopZXCVBNMASDFGHJKLQWERTYUIOP1234567890"
)

// Generate returns a new random API key. The raw key is shown to the caller
// once; only its hash is stored.
func Generate() (string, error) {
	buf := make([]byte, suffixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	suffix := make([]byte, suffixLength)
	for i, b := range buf {
		suffix[i] = alphabet[int(b)%len(alphabet)]
	}
	return Prefix + string(suffix), nil
}

// Hash returns the hex-encoded sha256 of a raw key, the form stored and
// looked up in the database.
func Hash(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix returns the short leading fragment of a key kept for display
// in listings.
func DisplayPrefix(rawKey string) string {
	if len(rawKey) <= len(Prefix)+4 {
		return rawKey
	}
	return rawKey[:len(Prefix)+4]
}
