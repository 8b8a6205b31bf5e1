// Package dbbadger persists the local contract replica on disk with
// badgerhold. An empty datadir opens the store in memory, which is what the
// test suites and ephemeral sessions use.
package dbbadger

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"

	"github.com/madnet-labs/madd/internal/core/domain"
	"github.com/madnet-labs/madd/pkg/derivation"
)

// replicaEntry is the stored shape of a replica cache entry. Owner and
// Contract are base58 strings so badgerhold can index and query them.
type replicaEntry struct {
	Owner    string `badgerhold:"index"`
	Contract string
	Entry    domain.CachedContract
}

type replicaRepositoryImpl struct {
	store *badgerhold.Store
}

// NewReplicaRepositoryImpl opens the replica store under
// <baseDbDir>/replica, or fully in memory when baseDbDir is empty.
func NewReplicaRepositoryImpl(
	baseDbDir string, logger badger.Logger,
) (domain.ReplicaRepository, error) {
	var replicaDir string
	if len(baseDbDir) > 0 {
		replicaDir = filepath.Join(baseDbDir, "replica")
	}

	store, err := createDb(replicaDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening replica db: %w", err)
	}
	return &replicaRepositoryImpl{store}, nil
}

func (r *replicaRepositoryImpl) GetContract(
	_ context.Context, owner, contract derivation.Address,
) (*domain.CachedContract, error) {
	var stored replicaEntry
	if err := r.store.Get(entryKey(owner, contract), &stored); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &stored.Entry, nil
}

func (r *replicaRepositoryImpl) GetAllContracts(
	_ context.Context, owner derivation.Address,
) ([]domain.CachedContract, error) {
	var stored []replicaEntry
	query := badgerhold.Where("Owner").Eq(owner.String()).Index("Owner")
	if err := r.store.Find(&stored, query); err != nil {
		return nil, err
	}

	out := make([]domain.CachedContract, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.Entry)
	}
	return out, nil
}

func (r *replicaRepositoryImpl) UpdateContract(
	_ context.Context, owner derivation.Address, entry *domain.CachedContract,
) error {
	stored := replicaEntry{
		Owner:    owner.String(),
		Contract: entry.Address.String(),
		Entry:    *entry,
	}
	return r.store.Upsert(entryKey(owner, entry.Address), &stored)
}

// Close releases the underlying badger instance.
func (r *replicaRepositoryImpl) Close() {
	r.store.Close()
}

func entryKey(owner, contract derivation.Address) string {
	return owner.String() + ":" + contract.String()
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			for {
				<-ticker.C
				if err := db.Badger().RunValueLogGC(0.5); err != nil &&
					err != badger.ErrNoRewrite {
					log.Error(err)
				}
			}
		}()
	}

	return db, nil
}
