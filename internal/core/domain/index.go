package domain

import "github.com/madnet-labs/madd/pkg/derivation"

// OwnerIndex mirrors a per-owner index record: the ordered list of the
// owner's currently-active contract addresses, plus (buyer side only) the
// next creation nonce. The index holds addresses, never contract records;
// it is the sole enumeration mechanism for what is still open.
type OwnerIndex struct {
	Owner     derivation.Address
	Role      Role
	NextNonce uint64
	Addresses []derivation.Address
}

// ActiveSet returns the addresses as a set for reconciliation.
func (i *OwnerIndex) ActiveSet() map[derivation.Address]struct{} {
	set := make(map[derivation.Address]struct{}, len(i.Addresses))
	for _, a := range i.Addresses {
		set[a] = struct{}{}
	}
	return set
}
