package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText creates a SHA256 hex digest of a string. Used for the
// content/prompt fingerprints on jobs and for consistent storage keys.
func HashText(text string) string {
	h := sha256.New()
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
