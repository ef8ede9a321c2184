// Package sha256 derives state keys with SHA-256.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// separator keeps part boundaries unambiguous, so ("ab","c") and ("a","bc") differ.
const separator = 0x00

// Hasher implements watch.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Sum hashes the parts joined by a NUL byte and returns the hex digest.
func (h *Hasher) Sum(parts ...string) string {
	d := sha256.New()
	for i, part := range parts {
		if i > 0 {
			d.Write([]byte{separator})
		}
		d.Write([]byte(part))
	}
	return hex.EncodeToString(d.Sum(nil))
}
