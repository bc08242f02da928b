package domain

import "time"

// DisasterEvent is a reported disaster awaiting (or holding) quorum.
type DisasterEvent struct {
	ID           uint64       `json:"id"`
	Location     string       `json:"location"`
	DisasterType DisasterType `json:"disaster_type"`
	Severity     uint64       `json:"severity"`
	ReportedAt   uint64       `json:"reported_at"` // unix seconds; part of the signed message
	Reporter     string       `json:"reporter,omitempty"`
	Attestations uint64       `json:"attestations"`
	Validated    bool         `json:"validated"`
	ValidatedAt  *time.Time   `json:"validated_at,omitempty"`
}

// State names the lifecycle position of the event.
func (e DisasterEvent) State() string {
	if e.Validated {
		return "validated"
	}
	return "reported"
}

// AttestationResult is returned by a successful attestation.
type AttestationResult struct {
	EventID      uint64 `json:"event_id"`
	Operator     string `json:"operator"`
	Attestations uint64 `json:"attestations"`
	Validated    bool   `json:"validated"`
	// Transitioned is true only for the attestation that reached quorum.
	Transitioned bool `json:"transitioned"`
}
