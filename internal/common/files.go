package common

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Hasher fingerprints a capture as its bytes stream past. The scan tees its
// forward read through Write, so the digest and size come from the same pass
// that decoded the packets, without re-reading the file.
type Hasher struct {
	h hash.Hash
	n int64
}

func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

func (h *Hasher) Write(p []byte) (int, error) {
	n, err := h.h.Write(p)
	h.n += int64(n)
	return n, err
}

// Sum returns the hex SHA-256 digest of everything written so far.
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// Size returns the number of bytes hashed.
func (h *Hasher) Size() int64 {
	return h.n
}
