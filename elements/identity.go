package elements

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// IDStrategy derives an element id from its text. The default is a
// deterministic content hash; callers wanting globally unique ids inject
// UUIDID instead.
type IDStrategy func(text string) string

// HashID returns the first 32 hex characters of the SHA-256 of text.
// Identical text yields identical ids, which keeps chunking reproducible.
func HashID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:32]
}

// UUIDID ignores the text and returns a random UUID.
func UUIDID(string) string {
	return uuid.New().String()
}
