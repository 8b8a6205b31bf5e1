package madprogram

import (
	"crypto/sha256"

	"github.com/madnet-labs/madd/pkg/bufferutil"
	"github.com/madnet-labs/madd/pkg/derivation"
)

// Transaction bundles instructions signed by the fee payer. The signing
// digest covers the payer and the full serialized instruction list, so a
// reordering of accounts or instructions invalidates the signature.
type Transaction struct {
	Payer        derivation.Address
	Instructions []Instruction
	Signature    []byte
}

// NewTransaction returns an unsigned transaction paying fees from payer.
func NewTransaction(payer derivation.Address, instructions ...Instruction) *Transaction {
	return &Transaction{Payer: payer, Instructions: instructions}
}

// Serialize returns the canonical byte encoding of the unsigned transaction.
func (t *Transaction) Serialize() []byte {
	s := bufferutil.NewSerializer()
	s.WriteSlice(t.Payer[:])
	s.WriteUint32(uint32(len(t.Instructions)))
	for _, ins := range t.Instructions {
		s.WriteSlice(ins.ProgramID[:])
		s.WriteUint32(uint32(len(ins.Accounts)))
		for _, meta := range ins.Accounts {
			s.WriteSlice(meta.Address[:])
			s.WriteBool(meta.Signer)
			s.WriteBool(meta.Writable)
		}
		s.WriteVarSlice(ins.Data)
	}
	return s.Bytes()
}

// Digest returns the message to be signed by the payer.
func (t *Transaction) Digest() [32]byte {
	return sha256.Sum256(t.Serialize())
}

// IsSigned returns whether a signature is attached.
func (t *Transaction) IsSigned() bool {
	return len(t.Signature) > 0
}
