package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random hex string, used for request ids and unique
// snapshot temp file names.
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
