// Package derivation implements the deterministic address and commitment
// scheme of the MAD escrow program. Every derived address is the sha256 of a
// fixed domain-separation tag followed by the relevant seeds, so that any
// party can locate a record without a lookup table.
package derivation

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// AddressLen is the byte length of every ledger address.
const AddressLen = 32

const (
	contractTag    = "madd:contract"
	buyerIndexTag  = "madd:index:buyer"
	sellerIndexTag = "madd:index:seller"
	vaultTag       = "madd:vault"
	commitmentTag  = "madd:commitment"
)

var (
	// ErrInvalidAddress ...
	ErrInvalidAddress = errors.New("address must be a base58 string of 32 bytes")
)

// Address is a raw 32-byte ledger address.
type Address [AddressLen]byte

// NewAddressFromBytes returns an Address from its raw byte representation.
func NewAddressFromBytes(buf []byte) (Address, error) {
	var a Address
	if len(buf) != AddressLen {
		return a, ErrInvalidAddress
	}
	copy(a[:], buf)
	return a, nil
}

// NewAddressFromString decodes a base58-encoded address.
func NewAddressFromString(s string) (Address, error) {
	return NewAddressFromBytes(base58.Decode(s))
}

// NewAddressFromSeed derives a well-known address from a static seed string.
// It is used for program ids and sink addresses fixed at deploy time.
func NewAddressFromSeed(seed string) Address {
	return Address(sha256.Sum256([]byte(seed)))
}

// String returns the base58 representation of the address.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// IsZero returns whether the address is the all-zero sentinel.
func (a Address) IsZero() bool {
	return a == Address{}
}

func derive(tag string, seeds ...[]byte) Address {
	h := sha256.New()
	h.Write([]byte(tag))
	for _, seed := range seeds {
		h.Write(seed)
	}
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// ForContract derives the contract record address for the given buyer and
// per-buyer nonce.
func ForContract(buyer Address, nonce uint64) Address {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], nonce)
	return derive(contractTag, buyer[:], buf[:])
}

// ForBuyerIndex derives the address of the owner's buyer-side index record.
func ForBuyerIndex(owner Address) Address {
	return derive(buyerIndexTag, owner[:])
}

// ForSellerIndex derives the address of the owner's seller-side index record.
func ForSellerIndex(owner Address) Address {
	return derive(sellerIndexTag, owner[:])
}

// ForVaultAuthority derives the vault-authority address holding the deposits
// of the given contract.
func ForVaultAuthority(contract Address) Address {
	return derive(vaultTag, contract[:])
}

// Commitment produces the digest binding a contract address to a secret code.
// The program stores it at creation and re-verifies the preimage on accept.
func Commitment(contract Address, code string) [32]byte {
	h := sha256.New()
	h.Write([]byte(commitmentTag))
	h.Write(contract[:])
	h.Write([]byte(code))
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// VerifyCommitment returns whether the code is the preimage of the digest
// stored for the given contract address.
func VerifyCommitment(contract Address, code string, digest [32]byte) bool {
	expected := Commitment(contract, code)
	return bytes.Equal(expected[:], digest[:])
}
