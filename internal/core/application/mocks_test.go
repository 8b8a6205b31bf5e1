package application_test

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/madnet-labs/madd/internal/core/domain"
	"github.com/madnet-labs/madd/pkg/amm"
	"github.com/madnet-labs/madd/pkg/bufferutil"
	"github.com/madnet-labs/madd/pkg/derivation"
	"github.com/madnet-labs/madd/pkg/madprogram"
)

// **** Signer ****

type mockSigner struct {
	identity derivation.Address
	locked   bool
}

func newMockSigner(identity derivation.Address) *mockSigner {
	return &mockSigner{identity: identity}
}

func (m *mockSigner) PublicIdentity() derivation.Address {
	return m.identity
}

func (m *mockSigner) SignTransaction(
	_ context.Context, tx *madprogram.Transaction,
) error {
	if m.locked {
		return domain.ErrSignerLocked
	}
	digest := tx.Digest()
	tx.Signature = digest[:]
	return nil
}

func (m *mockSigner) SignAllTransactions(
	ctx context.Context, txs []*madprogram.Transaction,
) error {
	for _, tx := range txs {
		if err := m.SignTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

// **** Ledger ****

// fakeLedger replays the deployed programs' semantics in memory so the
// engine can be exercised end to end. Records that reach a terminal status
// are dropped from the indexes like the real program does; reclaim()
// additionally deletes the record itself to simulate closed-account
// garbage collection.
type fakeLedger struct {
	mtx           sync.Mutex
	accounts      map[derivation.Address][]byte
	feeBalances   map[derivation.Address]uint64
	tokenBalances map[derivation.Address]uint64
	unavailable   bool
	submitErrs    []error
	reads         map[derivation.Address]int
	scans         int
	swaps         int
	submits       int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts:      map[derivation.Address][]byte{},
		feeBalances:   map[derivation.Address]uint64{},
		tokenBalances: map[derivation.Address]uint64{},
		reads:         map[derivation.Address]int{},
	}
}

func (l *fakeLedger) withPool(reserveIn, reserveOut uint64, feeBps uint32) *fakeLedger {
	l.accounts[madprogram.FeePoolAddress] = madprogram.EncodePool(&madprogram.PoolState{
		ReserveA:   reserveIn,
		ReserveB:   reserveOut,
		PrimaryIsA: true,
		FeeBps:     feeBps,
	})
	return l
}

func (l *fakeLedger) readCount(address derivation.Address) int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.reads[address]
}

func (l *fakeLedger) failNextSubmits(errs ...error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.submitErrs = append(l.submitErrs, errs...)
}

// reclaim drops a closed record entirely, like rent collection would.
func (l *fakeLedger) reclaim(address derivation.Address) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	delete(l.accounts, address)
}

// dropFromIndex simulates a concurrent session having closed the contract:
// the index no longer lists it.
func (l *fakeLedger) dropFromIndex(index, contract derivation.Address) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	state, err := madprogram.DecodeIndex(l.accounts[index])
	if err != nil {
		panic(err)
	}
	addresses := make([]derivation.Address, 0, len(state.Addresses))
	for _, a := range state.Addresses {
		if a != contract {
			addresses = append(addresses, a)
		}
	}
	state.Addresses = addresses
	l.accounts[index] = madprogram.EncodeIndex(state)
}

func (l *fakeLedger) setContract(
	address derivation.Address, state *madprogram.ContractState,
) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.accounts[address] = madprogram.EncodeContract(state)
}

func (l *fakeLedger) contractState(
	address derivation.Address,
) *madprogram.ContractState {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	state, err := madprogram.DecodeContract(l.accounts[address])
	if err != nil {
		panic(err)
	}
	return state
}

func (l *fakeLedger) GetAccount(
	_ context.Context, address derivation.Address,
) ([]byte, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if l.unavailable {
		return nil, domain.ErrLedgerUnavailable
	}
	l.reads[address]++
	buf, ok := l.accounts[address]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

func (l *fakeLedger) FindProgramAccounts(
	_ context.Context, discriminator []byte,
) (map[derivation.Address][]byte, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if l.unavailable {
		return nil, domain.ErrLedgerUnavailable
	}
	l.scans++
	out := map[derivation.Address][]byte{}
	for addr, buf := range l.accounts {
		if bytes.HasPrefix(buf, discriminator) {
			out[addr] = buf
		}
	}
	return out, nil
}

func (l *fakeLedger) GetBalance(
	_ context.Context, address derivation.Address,
) (uint64, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.unavailable {
		return 0, domain.ErrLedgerUnavailable
	}
	return l.feeBalances[address], nil
}

func (l *fakeLedger) GetTokenBalance(
	_ context.Context, address derivation.Address,
) (uint64, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.unavailable {
		return 0, domain.ErrLedgerUnavailable
	}
	return l.tokenBalances[address], nil
}

func (l *fakeLedger) SubmitTransaction(
	_ context.Context, tx *madprogram.Transaction,
) (string, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if l.unavailable {
		return "", domain.ErrLedgerUnavailable
	}
	if !tx.IsSigned() {
		return "", fmt.Errorf("transaction is not signed")
	}
	// injected failures target escrow operations, never the top-up swap
	if len(l.submitErrs) > 0 &&
		tx.Instructions[0].ProgramID != madprogram.PoolProgramID {
		err := l.submitErrs[0]
		l.submitErrs = l.submitErrs[1:]
		return "", err
	}

	for _, ins := range tx.Instructions {
		if err := l.apply(ins); err != nil {
			return "", err
		}
	}
	l.submits++
	return fmt.Sprintf("sig-%d", l.submits), nil
}

func (l *fakeLedger) apply(ins madprogram.Instruction) error {
	disc := ins.Data[:madprogram.DiscriminatorLen]
	d := bufferutil.NewDeserializer(ins.Data[madprogram.DiscriminatorLen:])

	switch {
	case bytes.Equal(disc, madprogram.InitIndexDiscriminator):
		role, _ := d.ReadUint8()
		owner := ins.Accounts[0].Address
		index := ins.Accounts[1].Address
		l.accounts[index] = madprogram.EncodeIndex(&madprogram.IndexState{
			Owner: owner, Role: madprogram.IndexRole(role),
		})
		return nil

	case bytes.Equal(disc, madprogram.CreateContractDiscriminator):
		principal, _ := d.ReadUint64()
		digest, _ := d.ReadSlice(32)
		buyer := ins.Accounts[0].Address
		contract := ins.Accounts[1].Address
		indexAddr := ins.Accounts[2].Address

		index, err := madprogram.DecodeIndex(l.accounts[indexAddr])
		if err != nil {
			return fmt.Errorf("buyer index does not exist")
		}
		state := &madprogram.ContractState{
			Buyer:        buyer,
			Principal:    principal,
			BuyerDeposit: 2 * principal,
			Nonce:        index.NextNonce,
			Status:       madprogram.StatusPendingSeller,
		}
		copy(state.Commitment[:], digest)
		l.accounts[contract] = madprogram.EncodeContract(state)

		index.NextNonce++
		index.Addresses = append(index.Addresses, contract)
		l.accounts[indexAddr] = madprogram.EncodeIndex(index)
		return nil

	case bytes.Equal(disc, madprogram.AcceptContractDiscriminator):
		code, _ := d.ReadVarSlice()
		seller := ins.Accounts[0].Address
		contract := ins.Accounts[1].Address
		indexAddr := ins.Accounts[2].Address

		state, err := madprogram.DecodeContract(l.accounts[contract])
		if err != nil {
			return fmt.Errorf("contract does not exist")
		}
		if state.Status != madprogram.StatusPendingSeller {
			return fmt.Errorf("contract is not pending")
		}
		if !derivation.VerifyCommitment(contract, string(code), state.Commitment) {
			return fmt.Errorf("commitment mismatch")
		}
		state.Seller = seller
		state.SellerDeposit = state.Principal
		state.Status = madprogram.StatusLocked
		l.accounts[contract] = madprogram.EncodeContract(state)

		index, err := madprogram.DecodeIndex(l.accounts[indexAddr])
		if err != nil {
			return fmt.Errorf("seller index does not exist")
		}
		index.Addresses = append(index.Addresses, contract)
		l.accounts[indexAddr] = madprogram.EncodeIndex(index)
		return nil

	case bytes.Equal(disc, madprogram.CancelContractDiscriminator):
		contract := ins.Accounts[1].Address
		state, err := madprogram.DecodeContract(l.accounts[contract])
		if err != nil {
			return fmt.Errorf("contract does not exist")
		}
		if state.Status != madprogram.StatusPendingSeller {
			return fmt.Errorf("contract is not pending")
		}
		state.BuyerDeposit = 0
		state.Closed = true
		state.Status = madprogram.StatusCancelled
		l.accounts[contract] = madprogram.EncodeContract(state)
		l.removeFromIndexLocked(ins.Accounts[2].Address, contract)
		return nil

	case bytes.Equal(disc, madprogram.ConfirmContractDiscriminator):
		party := ins.Accounts[0].Address
		contract := ins.Accounts[1].Address
		state, err := madprogram.DecodeContract(l.accounts[contract])
		if err != nil {
			return fmt.Errorf("contract does not exist")
		}
		switch state.Status {
		case madprogram.StatusLocked,
			madprogram.StatusBuyerConfirmed,
			madprogram.StatusSellerConfirmed:
		default:
			return fmt.Errorf("contract is not confirmable")
		}
		switch party {
		case state.Buyer:
			state.BuyerConfirmed = true
		case state.Seller:
			state.SellerConfirmed = true
		default:
			return fmt.Errorf("party is not part of the contract")
		}
		switch {
		case state.BuyerConfirmed && state.SellerConfirmed:
			state.BuyerDeposit = 0
			state.SellerDeposit = 0
			state.Closed = true
			state.Status = madprogram.StatusCompleted
			l.removeFromIndexLocked(ins.Accounts[2].Address, contract)
			l.removeFromIndexLocked(ins.Accounts[3].Address, contract)
		case state.BuyerConfirmed:
			state.Status = madprogram.StatusBuyerConfirmed
		default:
			state.Status = madprogram.StatusSellerConfirmed
		}
		l.accounts[contract] = madprogram.EncodeContract(state)
		return nil

	case bytes.Equal(disc, madprogram.BurnContractDiscriminator):
		contract := ins.Accounts[1].Address
		state, err := madprogram.DecodeContract(l.accounts[contract])
		if err != nil {
			return fmt.Errorf("contract does not exist")
		}
		state.BuyerDeposit = 0
		state.SellerDeposit = 0
		state.Closed = true
		state.Status = madprogram.StatusBurned
		l.accounts[contract] = madprogram.EncodeContract(state)
		l.removeFromIndexLocked(ins.Accounts[2].Address, contract)
		l.removeFromIndexLocked(ins.Accounts[3].Address, contract)
		return nil

	case bytes.Equal(disc, madprogram.SwapDiscriminator):
		amountIn, _ := d.ReadUint64()
		minAmountOut, _ := d.ReadUint64()
		trader := ins.Accounts[0].Address

		pool, err := madprogram.DecodePool(l.accounts[madprogram.FeePoolAddress])
		if err != nil {
			return fmt.Errorf("pool does not exist")
		}
		reserveIn, reserveOut := pool.ReserveA, pool.ReserveB
		if !pool.PrimaryIsA {
			reserveIn, reserveOut = reserveOut, reserveIn
		}
		amountOut, err := amm.OutGivenIn(amountIn, reserveIn, reserveOut, pool.FeeBps)
		if err != nil {
			return err
		}
		if amountOut < minAmountOut {
			return fmt.Errorf("output below minimum")
		}
		if l.tokenBalances[trader] < amountIn {
			return fmt.Errorf("insufficient token balance")
		}
		if pool.PrimaryIsA {
			pool.ReserveA += amountIn
			pool.ReserveB -= amountOut
		} else {
			pool.ReserveB += amountIn
			pool.ReserveA -= amountOut
		}
		l.accounts[madprogram.FeePoolAddress] = madprogram.EncodePool(pool)
		l.tokenBalances[trader] -= amountIn
		l.feeBalances[trader] += amountOut
		l.swaps++
		return nil
	}
	return fmt.Errorf("unknown instruction")
}

func (l *fakeLedger) removeFromIndexLocked(
	indexAddr, contract derivation.Address,
) {
	state, err := madprogram.DecodeIndex(l.accounts[indexAddr])
	if err != nil {
		return
	}
	addresses := make([]derivation.Address, 0, len(state.Addresses))
	for _, a := range state.Addresses {
		if a != contract {
			addresses = append(addresses, a)
		}
	}
	state.Addresses = addresses
	l.accounts[indexAddr] = madprogram.EncodeIndex(state)
}
