// Package domain models parametric disaster insurance settlement.
//
// # Lifecycle
//
// A policyholder buys coverage for a (location, disaster type) pair. When a
// disaster happens, anyone may report it; the report only becomes actionable
// once a quorum of registered operators has attested to it by signing the
// stored event fields. A validated event unlocks a single, full-coverage
// payout to every active policy whose location and disaster type match.
//
//	Policy:  active ──cancel──▶ cancelled (50% premium refund)
//	         active ──settle──▶ settled   (full coverage paid)
//	Event:   reported ──attest×quorum──▶ validated
//
// Both terminal transitions are one-way. Policies and events are never
// deleted; ids are assigned monotonically from 1 and are stable across calls.
//
// # Locations
//
// Locations are free-text keys ("San Francisco"). Every location-keyed table
// (risk snapshots, impact history, weather, reference data) is indexed by the
// Keccak-256 hash of the exact string, see [KeyOf]. Matching is exact and
// case-sensitive: "san francisco" and "San Francisco" are different places.
//
// # Units
//
// Amounts are integer counts of the smallest currency unit, carried as
// [decimal.Decimal] so 18-decimal token amounts do not overflow. Scores and
// multipliers are basis points where 100 = 1.0x. All scoring arithmetic is
// integer with truncating division so results are reproducible bit-for-bit.
//
// Severity is type specific: Richter magnitude x10 for earthquakes, a 0-100
// intensity index for floods and hurricanes.
package domain
