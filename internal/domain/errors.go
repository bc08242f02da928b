package domain

import "errors"

// Caller-facing failures. None are transient; callers decide whether to retry.
var (
	ErrInvalidCoverage      = errors.New("invalid coverage amount")
	ErrInsufficientPremium  = errors.New("insufficient premium paid")
	ErrUnknownPolicy        = errors.New("unknown policy")
	ErrUnknownEvent         = errors.New("unknown disaster event")
	ErrPolicyNotActive      = errors.New("policy not active")
	ErrNotPolicyholder      = errors.New("requester is not the policyholder")
	ErrDuplicateAttestation = errors.New("operator already attested this event")
	ErrAlreadyValidated     = errors.New("event already validated")
	ErrInvalidSignature     = errors.New("invalid operator signature")
	ErrEventNotValidated    = errors.New("event not validated")
	ErrLocationMismatch     = errors.New("policy and event locations differ")
	ErrDisasterTypeMismatch = errors.New("policy and event disaster types differ")
	ErrUnsupportedLocation  = errors.New("unsupported location")
	ErrNoDataAvailable      = errors.New("no data available")
	ErrUnknownDisasterType  = errors.New("unknown disaster type")
)

// ErrorCode returns the stable wire code for a domain error, or "" when err
// is not one of the sentinels above.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidCoverage, "InvalidCoverage"},
	{ErrInsufficientPremium, "InsufficientPremium"},
	{ErrUnknownPolicy, "UnknownPolicy"},
	{ErrUnknownEvent, "UnknownEvent"},
	{ErrPolicyNotActive, "PolicyNotActive"},
	{ErrNotPolicyholder, "NotPolicyholder"},
	{ErrDuplicateAttestation, "DuplicateAttestation"},
	{ErrAlreadyValidated, "AlreadyValidated"},
	{ErrInvalidSignature, "InvalidSignature"},
	{ErrEventNotValidated, "EventNotValidated"},
	{ErrLocationMismatch, "LocationMismatch"},
	{ErrDisasterTypeMismatch, "DisasterTypeMismatch"},
	{ErrUnsupportedLocation, "UnsupportedLocation"},
	{ErrNoDataAvailable, "NoDataAvailable"},
	{ErrUnknownDisasterType, "UnknownDisasterType"},
}
