package madprogram

import (
	"bytes"
	"errors"

	"github.com/madnet-labs/madd/pkg/bufferutil"
	"github.com/madnet-labs/madd/pkg/derivation"
)

var (
	// ErrWrongAccountKind is returned when an account buffer does not carry
	// the expected discriminator.
	ErrWrongAccountKind = errors.New("account data has unexpected discriminator")
	// ErrMalformedAccount ...
	ErrMalformedAccount = errors.New("account data is malformed")
)

// Contract status codes as stored on the ledger. Decoded once at this
// boundary; no downstream code re-interprets raw wire bytes.
const (
	StatusPendingSeller uint8 = iota
	StatusLocked
	StatusBuyerConfirmed
	StatusSellerConfirmed
	StatusCompleted
	StatusCancelled
	StatusBurned
)

// ContractState is the decoded on-ledger contract record.
type ContractState struct {
	Buyer           derivation.Address
	Seller          derivation.Address
	Principal       uint64
	BuyerDeposit    uint64
	SellerDeposit   uint64
	Commitment      [32]byte
	Nonce           uint64
	BuyerConfirmed  bool
	SellerConfirmed bool
	Closed          bool
	Status          uint8
}

// IndexState is the decoded per-owner index record.
type IndexState struct {
	Owner     derivation.Address
	Role      IndexRole
	NextNonce uint64
	Addresses []derivation.Address
}

// PoolState is the decoded constant-product pool record.
type PoolState struct {
	ReserveA   uint64
	ReserveB   uint64
	PrimaryIsA bool
	FeeBps     uint32
}

// DecodeContract parses a contract account buffer.
func DecodeContract(buf []byte) (*ContractState, error) {
	d, err := openAccount(buf, ContractAccountDiscriminator)
	if err != nil {
		return nil, err
	}

	state := &ContractState{}
	if state.Buyer, err = readAddress(d); err != nil {
		return nil, err
	}
	if state.Seller, err = readAddress(d); err != nil {
		return nil, err
	}
	if state.Principal, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if state.BuyerDeposit, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if state.SellerDeposit, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	digest, err := d.ReadSlice(32)
	if err != nil {
		return nil, err
	}
	copy(state.Commitment[:], digest)
	if state.Nonce, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if state.BuyerConfirmed, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if state.SellerConfirmed, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if state.Closed, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if state.Status, err = d.ReadUint8(); err != nil {
		return nil, err
	}
	return state, nil
}

// EncodeContract serializes a contract record. The daemon only decodes in
// production; encoding exists for the program test fixtures.
func EncodeContract(state *ContractState) []byte {
	s := bufferutil.NewSerializer()
	s.WriteSlice(ContractAccountDiscriminator)
	s.WriteSlice(state.Buyer[:])
	s.WriteSlice(state.Seller[:])
	s.WriteUint64(state.Principal)
	s.WriteUint64(state.BuyerDeposit)
	s.WriteUint64(state.SellerDeposit)
	s.WriteSlice(state.Commitment[:])
	s.WriteUint64(state.Nonce)
	s.WriteBool(state.BuyerConfirmed)
	s.WriteBool(state.SellerConfirmed)
	s.WriteBool(state.Closed)
	s.WriteUint8(state.Status)
	return s.Bytes()
}

// DecodeIndex parses a per-owner index account buffer.
func DecodeIndex(buf []byte) (*IndexState, error) {
	d, err := openAccount(buf, IndexAccountDiscriminator)
	if err != nil {
		return nil, err
	}

	state := &IndexState{}
	if state.Owner, err = readAddress(d); err != nil {
		return nil, err
	}
	role, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	state.Role = IndexRole(role)
	if state.NextNonce, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	count, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	// the count comes from an untrusted node; cap it by the bytes actually
	// present before allocating
	if uint(count) > uint(d.Remaining())/derivation.AddressLen {
		return nil, ErrMalformedAccount
	}
	state.Addresses = make([]derivation.Address, 0, count)
	for i := uint32(0); i < count; i++ {
		addr, err := readAddress(d)
		if err != nil {
			return nil, err
		}
		state.Addresses = append(state.Addresses, addr)
	}
	return state, nil
}

// EncodeIndex serializes an index record, for test fixtures.
func EncodeIndex(state *IndexState) []byte {
	s := bufferutil.NewSerializer()
	s.WriteSlice(IndexAccountDiscriminator)
	s.WriteSlice(state.Owner[:])
	s.WriteUint8(uint8(state.Role))
	s.WriteUint64(state.NextNonce)
	s.WriteUint32(uint32(len(state.Addresses)))
	for _, addr := range state.Addresses {
		s.WriteSlice(addr[:])
	}
	return s.Bytes()
}

// DecodePool parses a pool account buffer.
func DecodePool(buf []byte) (*PoolState, error) {
	d, err := openAccount(buf, PoolAccountDiscriminator)
	if err != nil {
		return nil, err
	}

	state := &PoolState{}
	if state.ReserveA, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if state.ReserveB, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if state.PrimaryIsA, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if state.FeeBps, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	return state, nil
}

// EncodePool serializes a pool record, for test fixtures.
func EncodePool(state *PoolState) []byte {
	s := bufferutil.NewSerializer()
	s.WriteSlice(PoolAccountDiscriminator)
	s.WriteUint64(state.ReserveA)
	s.WriteUint64(state.ReserveB)
	s.WriteBool(state.PrimaryIsA)
	s.WriteUint32(state.FeeBps)
	return s.Bytes()
}

func openAccount(
	buf, discriminator []byte,
) (*bufferutil.Deserializer, error) {
	d := bufferutil.NewDeserializer(buf)
	disc, err := d.ReadSlice(DiscriminatorLen)
	if err != nil {
		return nil, ErrMalformedAccount
	}
	if !bytes.Equal(disc, discriminator) {
		return nil, ErrWrongAccountKind
	}
	return d, nil
}

func readAddress(d *bufferutil.Deserializer) (derivation.Address, error) {
	buf, err := d.ReadSlice(derivation.AddressLen)
	if err != nil {
		return derivation.Address{}, err
	}
	return derivation.NewAddressFromBytes(buf)
}
