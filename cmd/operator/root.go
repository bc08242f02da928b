package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/storm-parametric-settlement/internal/attestation"
	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "operator",
		Short:        "Disaster event attestation operator toolkit",
		SilenceUsage: true,
	}
	root.AddCommand(newKeygenCmd(), newDigestCmd(), newSignCmd(), newSubmitCmd())
	return root
}

// eventFlags are the signed fields of a disaster event.
type eventFlags struct {
	location   string
	typ        string
	severity   uint64
	reportedAt uint64
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.location, "location", "", "event location, exactly as reported")
	cmd.Flags().StringVar(&f.typ, "type", "", "disaster type (EARTHQUAKE, FLOOD, HURRICANE)")
	cmd.Flags().Uint64Var(&f.severity, "severity", 0, "event severity")
	cmd.Flags().Uint64Var(&f.reportedAt, "reported-at", 0, "report time in unix seconds")
}

func (f *eventFlags) set() bool {
	return f.location != "" || f.typ != ""
}

func (f *eventFlags) digest() ([32]byte, error) {
	if f.location == "" || f.typ == "" || f.reportedAt == 0 {
		return [32]byte{}, errors.New("--location, --type and --reported-at are required")
	}
	t, err := domain.ParseDisasterType(f.typ)
	if err != nil {
		return [32]byte{}, err
	}
	return attestation.Digest(domain.DisasterEvent{
		Location:     f.location,
		DisasterType: t,
		Severity:     f.severity,
		ReportedAt:   f.reportedAt,
	}), nil
}

func parseDigest(s string) ([32]byte, error) {
	var d [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return d, fmt.Errorf("decode digest: %w", err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("digest must be 32 bytes, got %d", len(b))
	}
	copy(d[:], b)
	return d, nil
}

// loadPrivateKey reads a hex-encoded Ed25519 seed or full private key.
func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(data)), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

func hex0x(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
