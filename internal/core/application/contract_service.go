package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/madnet-labs/madd/internal/core/domain"
	"github.com/madnet-labs/madd/internal/core/ports"
	"github.com/madnet-labs/madd/pkg/derivation"
	"github.com/madnet-labs/madd/pkg/madprogram"
)

// maxParallelFetches bounds the concurrency of reconciliation reads.
const maxParallelFetches = 8

// ContractService drives the lifecycle of MAD contracts against the ledger
// and keeps the local replica cache consistent with the two per-owner index
// records.
type ContractService interface {
	Create(
		ctx context.Context, principal uint64, secretCode, displayName string,
	) (*domain.CachedContract, error)
	FindByCode(ctx context.Context, secretCode string) (*domain.CachedContract, error)
	Accept(
		ctx context.Context, address derivation.Address, secretCode string,
	) (*domain.CachedContract, error)
	Cancel(ctx context.Context, address derivation.Address) error
	Confirm(
		ctx context.Context, address derivation.Address,
	) (*domain.CachedContract, error)
	Burn(ctx context.Context, address derivation.Address, secretCode string) error
	ListMine(ctx context.Context) ([]domain.CachedContract, error)
	FetchOne(
		ctx context.Context, address derivation.Address,
	) (*domain.CachedContract, error)
}

type contractService struct {
	replicaRepository domain.ReplicaRepository
	ledgerSvc         ports.Ledger
	signerSvc         ports.Signer
	replenisher       *Replenisher
}

// NewContractService returns the contract lifecycle engine. Every mutating
// operation goes through the replenisher so a fee-currency shortfall is
// topped up transparently.
func NewContractService(
	replicaRepository domain.ReplicaRepository,
	ledgerSvc ports.Ledger,
	signerSvc ports.Signer,
	replenisher *Replenisher,
) ContractService {
	return &contractService{
		replicaRepository: replicaRepository,
		ledgerSvc:         ledgerSvc,
		signerSvc:         signerSvc,
		replenisher:       replenisher,
	}
}

func (s *contractService) Create(
	ctx context.Context, principal uint64, secretCode, displayName string,
) (*domain.CachedContract, error) {
	owner := s.signerSvc.PublicIdentity()

	index, err := s.ensureIndex(ctx, owner, madprogram.BuyerRole)
	if err != nil {
		return nil, err
	}
	if index.NextNonce == math.MaxUint64 {
		return nil, domain.ErrNonceExhausted
	}

	contract, err := domain.NewContract(owner, principal, index.NextNonce, secretCode)
	if err != nil {
		return nil, err
	}

	ins := madprogram.NewCreateContract(
		owner, contract.Address, principal, contract.Commitment,
	)
	if _, err := s.submit(ctx, ins); err != nil {
		return nil, err
	}

	entry := domain.NewCachedContract(*contract)
	entry.SecretCode = secretCode
	entry.DisplayName = displayName
	if err := s.replicaRepository.UpdateContract(ctx, owner, entry); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"contract":  contract.Address,
		"principal": principal,
	}).Info("contract created")
	return entry, nil
}

// FindByCode locates a PendingSeller contract by its secret code for a
// prospective seller who holds no address yet. This is the one deliberately
// expensive full-scan path.
func (s *contractService) FindByCode(
	ctx context.Context, secretCode string,
) (*domain.CachedContract, error) {
	owner := s.signerSvc.PublicIdentity()

	accounts, err := s.ledgerSvc.FindProgramAccounts(
		ctx, madprogram.ContractAccountDiscriminator,
	)
	if err != nil {
		return nil, err
	}

	for address, buf := range accounts {
		state, err := madprogram.DecodeContract(buf)
		if err != nil {
			log.WithError(err).WithField("address", address).
				Warn("skipping undecodable contract record")
			continue
		}
		if state.Status != madprogram.StatusPendingSeller {
			continue
		}
		if !derivation.VerifyCommitment(address, secretCode, state.Commitment) {
			continue
		}

		contract := contractFromState(address, state)
		entry := domain.NewCachedContract(contract)
		entry.SecretCode = secretCode
		if err := s.replicaRepository.UpdateContract(ctx, owner, entry); err != nil {
			return nil, err
		}
		return entry, nil
	}
	return nil, ErrNoMatchingContract
}

func (s *contractService) Accept(
	ctx context.Context, address derivation.Address, secretCode string,
) (*domain.CachedContract, error) {
	owner := s.signerSvc.PublicIdentity()

	contract, err := s.fetchContract(ctx, address)
	if err != nil {
		return nil, err
	}
	// local pre-check; the program re-verifies digest and status on-ledger
	if err := contract.Accept(owner, secretCode); err != nil {
		return nil, err
	}

	if _, err := s.ensureIndex(ctx, owner, madprogram.SellerRole); err != nil {
		return nil, err
	}

	ins := madprogram.NewAcceptContract(owner, address, secretCode)
	if _, err := s.submit(ctx, ins); err != nil {
		return nil, err
	}

	entry, err := s.upsert(ctx, owner, *contract, func(e *domain.CachedContract) {
		e.SecretCode = secretCode
	})
	if err != nil {
		return nil, err
	}

	log.WithField("contract", address).Info("contract accepted")
	return entry, nil
}

func (s *contractService) Cancel(
	ctx context.Context, address derivation.Address,
) error {
	owner := s.signerSvc.PublicIdentity()

	contract, err := s.loadContract(ctx, owner, address)
	if err != nil {
		return err
	}
	if err := contract.Cancel(owner); err != nil {
		return err
	}

	ins := madprogram.NewCancelContract(owner, address)
	if _, err := s.submit(ctx, ins); err != nil {
		return err
	}

	// terminal from here on: no ledger read will ever be issued again for
	// this contract
	if _, err := s.upsert(ctx, owner, *contract, nil); err != nil {
		return err
	}

	log.WithField("contract", address).Info("contract cancelled")
	return nil
}

func (s *contractService) Confirm(
	ctx context.Context, address derivation.Address,
) (*domain.CachedContract, error) {
	owner := s.signerSvc.PublicIdentity()

	contract, err := s.loadContract(ctx, owner, address)
	if err != nil {
		return nil, err
	}
	// the resulting status is inferred from the previously cached
	// confirmation flags, no extra ledger read
	if err := contract.Confirm(owner); err != nil {
		return nil, err
	}

	ins := madprogram.NewConfirmContract(
		owner, address, contract.Buyer, contract.Seller,
	)
	if _, err := s.submit(ctx, ins); err != nil {
		return nil, err
	}

	entry, err := s.upsert(ctx, owner, *contract, nil)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"contract": address,
		"status":   contract.Status.String(),
	}).Info("contract confirmed")
	return entry, nil
}

// Burn destroys both deposits. The caller must reproduce the contract's
// secret code as an explicit confirmation step; a button press is not
// enough for a destructive, fund-moving operation.
func (s *contractService) Burn(
	ctx context.Context, address derivation.Address, secretCode string,
) error {
	owner := s.signerSvc.PublicIdentity()

	contract, err := s.loadContract(ctx, owner, address)
	if err != nil {
		return err
	}
	if !derivation.VerifyCommitment(address, secretCode, contract.Commitment) {
		return domain.ErrInvalidCommitment
	}
	if err := contract.Burn(owner); err != nil {
		return err
	}

	ins := madprogram.NewBurnContract(
		owner, address, contract.Buyer, contract.Seller,
	)
	if _, err := s.submit(ctx, ins); err != nil {
		return err
	}

	if _, err := s.upsert(ctx, owner, *contract, nil); err != nil {
		return err
	}

	log.WithField("contract", address).Warn("contract burned")
	return nil
}

// ListMine reconciles the local replica against the two per-owner indexes.
// Steady-state ledger cost is two index reads plus one read per active
// contract; terminal entries are served from cache with zero reads.
func (s *contractService) ListMine(
	ctx context.Context,
) ([]domain.CachedContract, error) {
	owner := s.signerSvc.PublicIdentity()

	cached, err := s.replicaRepository.GetAllContracts(ctx, owner)
	if err != nil {
		return nil, err
	}
	byAddress := make(map[derivation.Address]*domain.CachedContract, len(cached))
	for i := range cached {
		byAddress[cached[i].Address] = &cached[i]
	}

	buyerIndex, berr := s.fetchIndex(ctx, derivation.ForBuyerIndex(owner))
	sellerIndex, serr := s.fetchIndex(ctx, derivation.ForSellerIndex(owner))
	if errors.Is(berr, domain.ErrLedgerUnavailable) ||
		errors.Is(serr, domain.ErrLedgerUnavailable) {
		// total outage: degrade to the local replica, but a cold cache has
		// nothing to fall back on
		if len(cached) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrCannotLoadContracts, domain.ErrLedgerUnavailable)
		}
		log.Warn("ledger unavailable, serving contracts from local replica")
		return cached, nil
	}
	if berr != nil {
		return nil, berr
	}
	if serr != nil {
		return nil, serr
	}

	active := map[derivation.Address]struct{}{}
	for _, index := range []*domain.OwnerIndex{buyerIndex, sellerIndex} {
		if index == nil {
			continue
		}
		for addr := range index.ActiveSet() {
			active[addr] = struct{}{}
		}
	}

	if err := s.refreshActive(ctx, owner, active, byAddress); err != nil {
		return nil, err
	}
	s.settleDisappeared(ctx, owner, active, byAddress)

	out := make([]domain.CachedContract, 0, len(byAddress))
	for _, entry := range byAddress {
		out = append(out, *entry)
	}
	return out, nil
}

func (s *contractService) FetchOne(
	ctx context.Context, address derivation.Address,
) (*domain.CachedContract, error) {
	owner := s.signerSvc.PublicIdentity()

	contract, err := s.fetchContract(ctx, address)
	if err != nil {
		return nil, err
	}
	return s.upsert(ctx, owner, *contract, nil)
}

// refreshActive fetches every address listed in the indexes fresh,
// overwriting its cache entry. These are the only contracts guaranteed to
// need a fresh read.
func (s *contractService) refreshActive(
	ctx context.Context,
	owner derivation.Address,
	active map[derivation.Address]struct{},
	byAddress map[derivation.Address]*domain.CachedContract,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)

	var mtx sync.Mutex
	for addr := range active {
		addr := addr
		g.Go(func() error {
			contract, err := s.fetchContract(gctx, addr)
			reconcileLedgerReads.Inc()
			if err != nil {
				// keep the stale entry rather than failing the whole call
				log.WithError(err).WithField("contract", addr).
					Warn("could not refresh active contract")
				return nil
			}

			mtx.Lock()
			defer mtx.Unlock()
			entry, ok := byAddress[addr]
			if !ok {
				entry = domain.NewCachedContract(*contract)
				byAddress[addr] = entry
			} else {
				entry.Observe(*contract)
			}
			return s.replicaRepository.UpdateContract(ctx, owner, entry)
		})
	}
	return g.Wait()
}

// settleDisappeared handles cached contracts no longer listed by any index.
// Terminal entries are returned verbatim with zero ledger calls. A
// non-terminal entry that disappeared was closed by another session, so it
// gets exactly one verification fetch; if the record is gone, a terminal
// status is inferred locally instead of failing the call.
func (s *contractService) settleDisappeared(
	ctx context.Context,
	owner derivation.Address,
	active map[derivation.Address]struct{},
	byAddress map[derivation.Address]*domain.CachedContract,
) {
	for addr, entry := range byAddress {
		if _, ok := active[addr]; ok {
			continue
		}
		if entry.Terminal {
			reconcileCacheHits.Inc()
			continue
		}

		contract, err := s.fetchContract(ctx, addr)
		reconcileLedgerReads.Inc()
		switch {
		case err == nil:
			entry.Observe(*contract)
			if !entry.Terminal {
				// the record still exists but left the index; trust the
				// record and flag the anomaly for a product decision
				log.WithField("contract", addr).
					Warn("contract missing from index but not terminal on ledger")
			}
		case errors.Is(err, domain.ErrRecordNotFound):
			entry.MarkTerminal(entry.InferTerminalStatus())
		default:
			// ledger unreachable: the cached state remains the fallback
			log.WithError(err).WithField("contract", addr).
				Warn("could not verify disappeared contract")
			continue
		}

		if err := s.replicaRepository.UpdateContract(ctx, owner, entry); err != nil {
			log.WithError(err).WithField("contract", addr).
				Error("could not persist replica entry")
		}
	}
}

// loadContract prefers the cached replica entry and falls back to a ledger
// read for unknown addresses.
func (s *contractService) loadContract(
	ctx context.Context, owner, address derivation.Address,
) (*domain.Contract, error) {
	entry, err := s.replicaRepository.GetContract(ctx, owner, address)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		contract := entry.Contract
		return &contract, nil
	}
	return s.fetchContract(ctx, address)
}

func (s *contractService) fetchContract(
	ctx context.Context, address derivation.Address,
) (*domain.Contract, error) {
	buf, err := s.ledgerSvc.GetAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	state, err := madprogram.DecodeContract(buf)
	if err != nil {
		return nil, fmt.Errorf("decoding contract record: %w", err)
	}
	contract := contractFromState(address, state)
	return &contract, nil
}

func (s *contractService) fetchIndex(
	ctx context.Context, address derivation.Address,
) (*domain.OwnerIndex, error) {
	buf, err := s.ledgerSvc.GetAccount(ctx, address)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	state, err := madprogram.DecodeIndex(buf)
	if err != nil {
		return nil, fmt.Errorf("decoding index record: %w", err)
	}
	return indexFromState(state), nil
}

// ensureIndex fetches the owner's index for the role and creates it
// transparently on first use, at the cost of one extra ledger call.
func (s *contractService) ensureIndex(
	ctx context.Context, owner derivation.Address, role madprogram.IndexRole,
) (*domain.OwnerIndex, error) {
	address := derivation.ForBuyerIndex(owner)
	if role == madprogram.SellerRole {
		address = derivation.ForSellerIndex(owner)
	}

	index, err := s.fetchIndex(ctx, address)
	if err != nil {
		return nil, err
	}
	if index != nil {
		return index, nil
	}

	if _, err := s.submit(ctx, madprogram.NewInitIndex(owner, role)); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"owner": owner,
		"role":  role,
	}).Debug("index record initialized")

	domainRole := domain.RoleBuyer
	if role == madprogram.SellerRole {
		domainRole = domain.RoleSeller
	}
	return &domain.OwnerIndex{Owner: owner, Role: domainRole}, nil
}

// submit signs and submits a single-instruction transaction through the
// auto-replenish wrapper.
func (s *contractService) submit(
	ctx context.Context, ins madprogram.Instruction,
) (string, error) {
	tx := madprogram.NewTransaction(s.signerSvc.PublicIdentity(), ins)
	if err := s.signerSvc.SignTransaction(ctx, tx); err != nil {
		return "", err
	}
	return s.replenisher.Execute(ctx, func(ctx context.Context) (string, error) {
		return s.ledgerSvc.SubmitTransaction(ctx, tx)
	})
}

// upsert merges a fresh contract state into the replica cache for owner.
func (s *contractService) upsert(
	ctx context.Context,
	owner derivation.Address,
	contract domain.Contract,
	mutate func(*domain.CachedContract),
) (*domain.CachedContract, error) {
	entry, err := s.replicaRepository.GetContract(ctx, owner, contract.Address)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry = domain.NewCachedContract(contract)
	} else {
		entry.Observe(contract)
	}
	if mutate != nil {
		mutate(entry)
	}
	if err := s.replicaRepository.UpdateContract(ctx, owner, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func contractFromState(
	address derivation.Address, state *madprogram.ContractState,
) domain.Contract {
	return domain.Contract{
		Address:         address,
		Buyer:           state.Buyer,
		Seller:          state.Seller,
		Principal:       state.Principal,
		BuyerDeposit:    state.BuyerDeposit,
		SellerDeposit:   state.SellerDeposit,
		Commitment:      state.Commitment,
		Nonce:           state.Nonce,
		BuyerConfirmed:  state.BuyerConfirmed,
		SellerConfirmed: state.SellerConfirmed,
		Closed:          state.Closed,
		Status:          domain.ContractStatus(state.Status),
	}
}

func indexFromState(state *madprogram.IndexState) *domain.OwnerIndex {
	role := domain.RoleBuyer
	if state.Role == madprogram.SellerRole {
		role = domain.RoleSeller
	}
	return &domain.OwnerIndex{
		Owner:     state.Owner,
		Role:      role,
		NextNonce: state.NextNonce,
		Addresses: state.Addresses,
	}
}
