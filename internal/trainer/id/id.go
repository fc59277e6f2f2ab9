// Package id provides voice identifier generation and validation.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// pattern keeps identifiers usable as a single path component.
var pattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Generate creates a new unique voice ID.
// Format: voice-<timestamp>-<random>
// Example: voice-1701432000-a1b2c3d4
func Generate() string {
	timestamp := time.Now().Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		return fmt.Sprintf("voice-%d", timestamp)
	}
	return fmt.Sprintf("voice-%d-%s", timestamp, hex.EncodeToString(random))
}

// Valid reports whether s is an acceptable voice ID: 1 to 64 letters,
// digits, underscores or hyphens, not starting with a separator.
func Valid(s string) bool {
	return pattern.MatchString(s)
}
