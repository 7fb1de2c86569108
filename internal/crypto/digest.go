package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digester produces keyed BLAKE2b-256 digests, used wherever an identifier
// (client address, applicant email) must be correlated without being kept.
type Digester struct {
	key []byte
}

// New creates a Digester. key must be at most 64 bytes.
func New(key []byte) *Digester {
	if len(key) > blake2b.Size {
		panic("crypto: key must be at most 64 bytes")
	}
	return &Digester{key: key}
}

// Sum returns the hex digest of s.
func (d *Digester) Sum(s string) string {
	h, _ := blake2b.New256(d.key)
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// Short returns the first 12 hex characters of Sum, enough to tell log
// lines apart.
func (d *Digester) Short(s string) string {
	return d.Sum(s)[:12]
}
