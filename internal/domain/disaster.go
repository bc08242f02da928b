package domain

import (
	"fmt"
	"strings"
)

// DisasterType is the insured peril. The numeric value is the code embedded
// in signed attestation messages and must not be reordered.
type DisasterType uint8

const (
	Earthquake DisasterType = iota
	Flood
	Hurricane
)

// DisasterTypes lists every supported type in code order.
var DisasterTypes = []DisasterType{Earthquake, Flood, Hurricane}

func (t DisasterType) String() string {
	switch t {
	case Earthquake:
		return "EARTHQUAKE"
	case Flood:
		return "FLOOD"
	case Hurricane:
		return "HURRICANE"
	default:
		return fmt.Sprintf("DisasterType(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the supported types.
func (t DisasterType) Valid() bool {
	return t <= Hurricane
}

// Code is the single-byte wire encoding used in attestation digests.
func (t DisasterType) Code() uint8 {
	return uint8(t)
}

// ParseDisasterType accepts the type name in any case ("earthquake",
// "FLOOD") or its numeric code ("2").
func ParseDisasterType(s string) (DisasterType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EARTHQUAKE", "0":
		return Earthquake, nil
	case "FLOOD", "1":
		return Flood, nil
	case "HURRICANE", "2":
		return Hurricane, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDisasterType, s)
	}
}

func (t DisasterType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDisasterType, uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *DisasterType) UnmarshalText(text []byte) error {
	parsed, err := ParseDisasterType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
