package domain

import (
	"context"
	"time"

	"github.com/madnet-labs/madd/pkg/derivation"
)

// CachedContract is a local replica entry: a denormalized copy of a contract
// record plus a terminal flag and the last-observed timestamp, scoped per
// owner identity. Once Terminal is set the entry is never read from the
// ledger again; it is also the fallback of last resort when the ledger is
// unreachable.
type CachedContract struct {
	Contract
	Terminal    bool
	LastSeen    int64
	DisplayName string
	SecretCode  string
}

// NewCachedContract returns a replica entry for a freshly observed contract.
func NewCachedContract(contract Contract) *CachedContract {
	entry := &CachedContract{Contract: contract, LastSeen: time.Now().Unix()}
	if contract.Status.IsTerminal() {
		entry.Terminal = true
	}
	return entry
}

// Observe overwrites the contract projection with a fresh ledger read,
// preserving local metadata, and marks the entry terminal if the observed
// status is absorbing.
func (c *CachedContract) Observe(contract Contract) {
	c.Contract = contract
	c.LastSeen = time.Now().Unix()
	if contract.Status.IsTerminal() {
		c.Terminal = true
	}
}

// MarkTerminal forces the entry into the given absorbing status without a
// ledger read, used when terminality is inferred locally.
func (c *CachedContract) MarkTerminal(status ContractStatus) {
	c.Status = status
	c.Closed = true
	c.Terminal = true
	c.LastSeen = time.Now().Unix()
}

// ReplicaRepository is the persistent store of the local replica, keyed by
// (owner identity, contract address). Entries are only ever mutated by the
// contract lifecycle engine.
type ReplicaRepository interface {
	// GetContract returns the cached entry, or nil without error when the
	// pair is unknown.
	GetContract(
		ctx context.Context, owner, contract derivation.Address,
	) (*CachedContract, error)
	// GetAllContracts returns every cached entry for the owner.
	GetAllContracts(
		ctx context.Context, owner derivation.Address,
	) ([]CachedContract, error)
	// UpdateContract inserts or overwrites a cached entry.
	UpdateContract(
		ctx context.Context, owner derivation.Address, entry *CachedContract,
	) error
}
