package attestation

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Verifier decides whether sig is a valid signature by operator over digest.
// A false result means the signature was rejected; an error means the
// decision could not be made.
type Verifier interface {
	IsValidSignature(ctx context.Context, operator string, digest [32]byte, sig []byte) (bool, error)
}

// AlwaysValid accepts every signature. Used in tests and local demos only.
type AlwaysValid struct{}

func (AlwaysValid) IsValidSignature(context.Context, string, [32]byte, []byte) (bool, error) {
	return true, nil
}

// Registry is an operator directory keyed by operator id, verifying Ed25519
// signatures. Unregistered operators never verify.
type Registry struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: make(map[string]ed25519.PublicKey)}
}

// Register adds or replaces an operator key.
func (r *Registry) Register(operator string, key ed25519.PublicKey) error {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return errors.New("operator id cannot be empty")
	}
	if len(key) != ed25519.PublicKeySize {
		return fmt.Errorf("operator %s: invalid public key size %d", operator, len(key))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[operator] = append(ed25519.PublicKey(nil), key...)
	return nil
}

// Operators returns registered operator ids in sorted order.
func (r *Registry) Operators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.keys))
	for id := range r.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) IsValidSignature(ctx context.Context, operator string, digest [32]byte, sig []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	key, ok := r.keys[operator]
	r.mu.RUnlock()
	if !ok || len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(key, digest[:], sig), nil
}

// Sign signs digest with an operator private key.
func Sign(priv ed25519.PrivateKey, digest [32]byte) []byte {
	return ed25519.Sign(priv, digest[:])
}

type registryFile struct {
	Operators []struct {
		ID        string `toml:"id"`
		PublicKey string `toml:"public_key"`
	} `toml:"operator"`
}

// ParseRegistry reads a TOML operator list:
//
//	[[operator]]
//	id = "op-1"
//	public_key = "<hex ed25519 public key>"
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse operator registry: %w", err)
	}
	reg := NewRegistry()
	for _, op := range file.Operators {
		key, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(op.PublicKey), "0x"))
		if err != nil {
			return nil, fmt.Errorf("operator %s: decode public key: %w", op.ID, err)
		}
		if err := reg.Register(op.ID, key); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// LoadRegistry reads an operator registry file from disk.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read operator registry: %w", err)
	}
	return ParseRegistry(data)
}
