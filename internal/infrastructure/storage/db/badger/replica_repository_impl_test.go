package dbbadger

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madnet-labs/madd/internal/core/domain"
	"github.com/madnet-labs/madd/pkg/derivation"
)

func TestReplicaRepository(t *testing.T) {
	repo, err := NewReplicaRepositoryImpl("", nil)
	require.NoError(t, err)
	t.Cleanup(repo.(*replicaRepositoryImpl).Close)

	t.Run("GetContractUnknown", testGetContractUnknown(repo))
	t.Run("UpdateAndGetContract", testUpdateAndGetContract(repo))
	t.Run("UpdateOverwrites", testUpdateOverwrites(repo))
	t.Run("GetAllContractsScopedByOwner", testGetAllContractsScopedByOwner(repo))
}

func testGetContractUnknown(repo domain.ReplicaRepository) func(*testing.T) {
	return func(t *testing.T) {
		entry, err := repo.GetContract(
			context.Background(), testAddress(), testAddress(),
		)
		require.NoError(t, err)
		assert.Nil(t, entry)
	}
}

func testUpdateAndGetContract(repo domain.ReplicaRepository) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		owner := testAddress()
		entry := createTestEntry(owner, 0)
		entry.DisplayName = "laptop sale"
		entry.SecretCode = "a secret code"

		err := repo.UpdateContract(ctx, owner, entry)
		require.NoError(t, err)

		fetched, err := repo.GetContract(ctx, owner, entry.Address)
		require.NoError(t, err)
		require.NotNil(t, fetched)
		assert.Equal(t, entry.Address, fetched.Address)
		assert.Equal(t, entry.Status, fetched.Status)
		assert.Equal(t, "laptop sale", fetched.DisplayName)
		assert.Equal(t, "a secret code", fetched.SecretCode)

		// the same contract under another owner identity is a distinct entry
		other, err := repo.GetContract(ctx, testAddress(), entry.Address)
		require.NoError(t, err)
		assert.Nil(t, other)
	}
}

func testUpdateOverwrites(repo domain.ReplicaRepository) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		owner := testAddress()
		entry := createTestEntry(owner, 0)

		err := repo.UpdateContract(ctx, owner, entry)
		require.NoError(t, err)

		entry.MarkTerminal(domain.StatusCancelled)
		err = repo.UpdateContract(ctx, owner, entry)
		require.NoError(t, err)

		fetched, err := repo.GetContract(ctx, owner, entry.Address)
		require.NoError(t, err)
		require.NotNil(t, fetched)
		assert.True(t, fetched.Terminal)
		assert.Equal(t, domain.StatusCancelled, fetched.Status)
	}
}

func testGetAllContractsScopedByOwner(
	repo domain.ReplicaRepository,
) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		owner := testAddress()
		other := testAddress()

		for nonce := uint64(0); nonce < 3; nonce++ {
			err := repo.UpdateContract(ctx, owner, createTestEntry(owner, nonce))
			require.NoError(t, err)
		}
		err := repo.UpdateContract(ctx, other, createTestEntry(other, 0))
		require.NoError(t, err)

		all, err := repo.GetAllContracts(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, all, 3)
		for _, entry := range all {
			assert.Equal(t, owner, entry.Buyer)
		}
	}
}

func createTestEntry(
	owner derivation.Address, nonce uint64,
) *domain.CachedContract {
	contract, err := domain.NewContract(owner, 100, nonce, "test code")
	if err != nil {
		panic(err)
	}
	return domain.NewCachedContract(*contract)
}

func testAddress() derivation.Address {
	buf := make([]byte, derivation.AddressLen)
	rand.Read(buf)
	addr, _ := derivation.NewAddressFromBytes(buf)
	return addr
}
