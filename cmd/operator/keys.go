package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/storm-parametric-settlement/internal/attestation"
)

func newKeygenCmd() *cobra.Command {
	var id, out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an operator key pair and print its registry entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id == "" {
				return errors.New("--id is required")
			}
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			if err := os.WriteFile(out, []byte(hex.EncodeToString(priv.Seed())+"\n"), 0o600); err != nil {
				return fmt.Errorf("write private key: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "[[operator]]\nid = %q\npublic_key = %q\n", id, hex.EncodeToString(pub))
			return err
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "operator id")
	cmd.Flags().StringVar(&out, "out", "operator.key", "private key output file")
	return cmd
}

func newDigestCmd() *cobra.Command {
	var ev eventFlags
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print the digest an operator signs for an event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := ev.digest()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hex0x(d[:]))
			return err
		},
	}
	ev.register(cmd)
	return cmd
}

func newSignCmd() *cobra.Command {
	var (
		ev      eventFlags
		keyPath string
		digest  string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign an event digest with an operator key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, err := loadPrivateKey(keyPath)
			if err != nil {
				return err
			}
			d, err := resolveDigest(digest, &ev)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hex0x(attestation.Sign(priv, d)))
			return err
		},
	}
	ev.register(cmd)
	cmd.Flags().StringVar(&keyPath, "key", "operator.key", "private key file")
	cmd.Flags().StringVar(&digest, "digest", "", "digest to sign (hex); alternative to the event flags")
	return cmd
}

func resolveDigest(digest string, ev *eventFlags) ([32]byte, error) {
	if digest != "" {
		if ev.set() {
			return [32]byte{}, errors.New("use either --digest or the event flags, not both")
		}
		return parseDigest(digest)
	}
	return ev.digest()
}
