package inmemory

import (
	"context"
	"sync"

	"github.com/madnet-labs/madd/internal/core/domain"
	"github.com/madnet-labs/madd/pkg/derivation"
)

type replicaKey struct {
	owner    derivation.Address
	contract derivation.Address
}

type replicaRepositoryImpl struct {
	locker  sync.RWMutex
	entries map[replicaKey]domain.CachedContract
}

// NewReplicaRepositoryImpl returns a volatile ReplicaRepository, used in
// tests and for ephemeral sessions.
func NewReplicaRepositoryImpl() domain.ReplicaRepository {
	return &replicaRepositoryImpl{
		entries: map[replicaKey]domain.CachedContract{},
	}
}

func (r *replicaRepositoryImpl) GetContract(
	_ context.Context, owner, contract derivation.Address,
) (*domain.CachedContract, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	entry, ok := r.entries[replicaKey{owner, contract}]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (r *replicaRepositoryImpl) GetAllContracts(
	_ context.Context, owner derivation.Address,
) ([]domain.CachedContract, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	out := make([]domain.CachedContract, 0)
	for key, entry := range r.entries {
		if key.owner == owner {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *replicaRepositoryImpl) UpdateContract(
	_ context.Context, owner derivation.Address, entry *domain.CachedContract,
) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	r.entries[replicaKey{owner, entry.Address}] = *entry
	return nil
}
