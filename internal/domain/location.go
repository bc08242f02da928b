package domain

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// LocationKey is the canonical index of a location string: the Keccak-256
// hash of its exact UTF-8 bytes.
type LocationKey [32]byte

// KeyOf hashes a location. No trimming or case folding is applied.
func KeyOf(location string) LocationKey {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(location))
	var k LocationKey
	copy(k[:], h.Sum(nil))
	return k
}

// SameLocation reports whether a and b canonicalize to the same key.
func SameLocation(a, b string) bool {
	return KeyOf(a) == KeyOf(b)
}

func (k LocationKey) String() string {
	return "0x" + hex.EncodeToString(k[:])
}
