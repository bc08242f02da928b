package attestation

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Submission is an operator's signed attestation as carried on the wire.
type Submission struct {
	EventID   uint64 `json:"event_id"`
	Operator  string `json:"operator"`
	Signature string `json:"signature"` // hex, optional 0x prefix
}

// NewSubmission hex-encodes sig.
func NewSubmission(eventID uint64, operator string, sig []byte) Submission {
	return Submission{EventID: eventID, Operator: operator, Signature: "0x" + hex.EncodeToString(sig)}
}

// SignatureBytes decodes the hex signature.
func (s Submission) SignatureBytes() ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s.Signature), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	return sig, nil
}

// DecodeSubmission parses and validates a JSON submission.
func DecodeSubmission(data []byte) (Submission, []byte, error) {
	var s Submission
	if err := json.Unmarshal(data, &s); err != nil {
		return Submission{}, nil, fmt.Errorf("decode submission: %w", err)
	}
	if s.EventID == 0 {
		return Submission{}, nil, errors.New("submission missing event_id")
	}
	if strings.TrimSpace(s.Operator) == "" {
		return Submission{}, nil, errors.New("submission missing operator")
	}
	sig, err := s.SignatureBytes()
	if err != nil {
		return Submission{}, nil, err
	}
	if len(sig) == 0 {
		return Submission{}, nil, errors.New("submission missing signature")
	}
	return s, sig, nil
}
