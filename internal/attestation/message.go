// Package attestation builds the canonical message operators sign when
// attesting a disaster event, and verifies those signatures.
//
// The message is the tightly packed encoding
//
//	location (raw UTF-8) ‖ type code (1 byte) ‖ severity (32-byte big-endian) ‖ reportedAt (32-byte big-endian)
//
// hashed with Keccak-256, then wrapped in the signed-message convention
//
//	keccak256("\x19Ethereum Signed Message:\n32" ‖ hash)
//
// Operators sign the wrapped digest. Verification always rebuilds the digest
// from the stored event, never from caller-supplied fields.
package attestation

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

const signedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// Message returns the packed encoding of the signed event fields.
func Message(location string, t domain.DisasterType, severity, reportedAt uint64) []byte {
	buf := make([]byte, 0, len(location)+1+64)
	buf = append(buf, location...)
	buf = append(buf, t.Code())
	buf = appendUint256(buf, severity)
	buf = appendUint256(buf, reportedAt)
	return buf
}

// EventHash is keccak256 of the packed event message.
func EventHash(e domain.DisasterEvent) [32]byte {
	return keccak(Message(e.Location, e.DisasterType, e.Severity, e.ReportedAt))
}

// Digest is the prefixed hash an operator signs for e.
func Digest(e domain.DisasterEvent) [32]byte {
	return WrapSigned(EventHash(e))
}

// WrapSigned applies the signed-message prefix to a 32-byte hash.
func WrapSigned(hash [32]byte) [32]byte {
	buf := make([]byte, 0, len(signedMessagePrefix)+len(hash))
	buf = append(buf, signedMessagePrefix...)
	buf = append(buf, hash[:]...)
	return keccak(buf)
}

func appendUint256(buf []byte, v uint64) []byte {
	var word [32]byte
	binary.BigEndian.PutUint64(word[24:], v)
	return append(buf, word[:]...)
}

func keccak(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
