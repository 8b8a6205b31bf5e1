// Package signer holds the reference ports.Signer implementation: a single
// secp256k1 key kept in memory, Schnorr-signing transaction digests. The key
// never leaves the process; persistence and hardware-backed signers plug in
// behind the same interface.
package signer

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/madnet-labs/madd/internal/core/domain"
	"github.com/madnet-labs/madd/internal/core/ports"
	"github.com/madnet-labs/madd/pkg/derivation"
	"github.com/madnet-labs/madd/pkg/madprogram"
)

// Service is a lockable signer. While locked every signing call fails fast
// with domain.ErrSignerLocked.
type Service interface {
	ports.Signer
	Lock()
	Unlock()
	IsLocked() bool
}

type service struct {
	mtx      sync.RWMutex
	privKey  *btcec.PrivateKey
	identity derivation.Address
	locked   bool
}

// NewService returns a signer with a freshly generated key, unlocked.
func NewService() (Service, error) {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	return newService(privKey)
}

// NewServiceFromKey returns a signer for a hex-encoded 32-byte private key,
// unlocked.
func NewServiceFromKey(privKeyHex string) (Service, error) {
	buf, err := hex.DecodeString(privKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding signing key: %w", err)
	}
	if len(buf) != 32 {
		return nil, fmt.Errorf("signing key must be 32 bytes, got %d", len(buf))
	}
	privKey, _ := btcec.PrivKeyFromBytes(buf)
	return newService(privKey)
}

func newService(privKey *btcec.PrivateKey) (Service, error) {
	identity, err := derivation.NewAddressFromBytes(
		schnorr.SerializePubKey(privKey.PubKey()),
	)
	if err != nil {
		return nil, err
	}
	return &service{privKey: privKey, identity: identity}, nil
}

func (s *service) PublicIdentity() derivation.Address {
	return s.identity
}

func (s *service) SignTransaction(
	_ context.Context, tx *madprogram.Transaction,
) error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if s.locked {
		return domain.ErrSignerLocked
	}

	digest := tx.Digest()
	sig, err := schnorr.Sign(s.privKey, digest[:])
	if err != nil {
		return fmt.Errorf("signing transaction: %w", err)
	}
	tx.Signature = sig.Serialize()
	return nil
}

func (s *service) SignAllTransactions(
	ctx context.Context, txs []*madprogram.Transaction,
) error {
	for _, tx := range txs {
		if err := s.SignTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Lock() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.locked = true
}

func (s *service) Unlock() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.locked = false
}

func (s *service) IsLocked() bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.locked
}
