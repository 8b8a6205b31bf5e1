package application_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/madnet-labs/madd/internal/core/application"
	"github.com/madnet-labs/madd/internal/core/ports"
)

func TestClassifyFeeShortfall(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected *ports.FeeShortfallError
	}{
		{
			name:     "typed error",
			err:      &ports.FeeShortfallError{Have: 2000, Need: 7000},
			expected: &ports.FeeShortfallError{Have: 2000, Need: 7000},
		},
		{
			name: "typed error wrapped",
			err: fmt.Errorf(
				"submitting transaction: %w",
				&ports.FeeShortfallError{Have: 100, Need: 350},
			),
			expected: &ports.FeeShortfallError{Have: 100, Need: 350},
		},
		{
			name:     "exact message",
			err:      errors.New("rpc error: insufficient fee funds: have 2000, need 7000"),
			expected: &ports.FeeShortfallError{Have: 2000, Need: 7000},
		},
		{
			name: "raw program log with known error code",
			err: errors.New(
				"transaction failed: custom program error: 0x1, balance 2000 below required 7000",
			),
			expected: &ports.FeeShortfallError{Have: 2000, Need: 7000},
		},
		{
			name:     "loose insufficient message",
			err:      errors.New("Insufficient funds for fee: 1500 < 250000"),
			expected: &ports.FeeShortfallError{Have: 1500, Need: 250000},
		},
		{
			name: "unrelated error",
			err:  errors.New("connection refused"),
		},
		{
			name: "insufficient without amounts",
			err:  errors.New("insufficient funds"),
		},
		{
			name: "amounts not a shortfall",
			err:  errors.New("insufficient fee funds: have 9000, need 7000"),
		},
		{
			name: "large numbers without shortfall keywords",
			err:  errors.New("deadline exceeded after 30000 ms at slot 12345"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shortfall, ok := application.ClassifyFeeShortfall(tt.err)
			if tt.expected == nil {
				require.False(t, ok)
				return
			}
			require.True(t, ok)
			require.Equal(t, tt.expected.Have, shortfall.Have)
			require.Equal(t, tt.expected.Need, shortfall.Need)
		})
	}
}

type replenishFixture struct {
	replenisher *application.Replenisher
	ledger      *fakeLedger
	signer      *mockSigner
	events      []application.ReplenishEvent
}

func newReplenishFixture(primaryBalance uint64) *replenishFixture {
	f := &replenishFixture{
		ledger: newFakeLedger().withPool(
			poolReservePrimary, poolReserveFee, poolFeeBps,
		),
		signer: newMockSigner(randomAddress()),
	}
	f.ledger.tokenBalances[f.signer.identity] = primaryBalance
	swapSvc := application.NewSwapService(f.ledger, f.signer, slippageBps)
	f.replenisher = application.NewReplenisher(
		swapSvc, f.ledger, f.signer, feeBuffer,
		func(e application.ReplenishEvent) { f.events = append(f.events, e) },
	)
	return f
}

func TestReplenisherTopsUpAndRetriesOnce(t *testing.T) {
	f := newReplenishFixture(1000000)

	calls := 0
	res, err := f.replenisher.Execute(ctx, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &ports.FeeShortfallError{Have: 2000, Need: 7000}
		}
		return "txid-final", nil
	})
	require.NoError(t, err)
	require.Equal(t, "txid-final", res)
	require.Equal(t, 2, calls)
	require.Equal(t, 1, f.ledger.swaps)

	// deficit 5000 plus the configured buffer, reverse-quoted at 25 bps fee
	require.Len(t, f.events, 1)
	event := f.events[0]
	require.Equal(t, uint64(5000), event.Deficit)
	require.Equal(t, uint64(11069), event.AmountIn)
	require.Equal(t, uint64(5500), event.AmountOut)
	require.NotEmpty(t, event.TxID)
	_, err = uuid.Parse(event.Id)
	require.NoError(t, err)

	require.Equal(t, uint64(1000000-11069), f.ledger.tokenBalances[f.signer.identity])
	require.GreaterOrEqual(t, f.ledger.feeBalances[f.signer.identity], uint64(5500))
}

func TestReplenisherNeverSwapsTwice(t *testing.T) {
	f := newReplenishFixture(1000000)

	firstErr := &ports.FeeShortfallError{Have: 2000, Need: 7000}
	secondErr := &ports.FeeShortfallError{Have: 4000, Need: 9000}
	calls := 0
	_, err := f.replenisher.Execute(ctx, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", firstErr
		}
		return "", secondErr
	})

	// the retried operation's failure is surfaced unmodified
	require.Equal(t, secondErr, err)
	require.Equal(t, 2, calls)
	require.Equal(t, 1, f.ledger.swaps)
	require.Len(t, f.events, 1)
}

func TestReplenisherPassesThroughUnrelatedErrors(t *testing.T) {
	f := newReplenishFixture(1000000)

	opErr := errors.New("connection refused")
	calls := 0
	_, err := f.replenisher.Execute(ctx, func(context.Context) (string, error) {
		calls++
		return "", opErr
	})
	require.Equal(t, opErr, err)
	require.Equal(t, 1, calls)
	require.Zero(t, f.ledger.swaps)
	require.Empty(t, f.events)
}

func TestReplenisherInsufficientPrimaryBalance(t *testing.T) {
	f := newReplenishFixture(100)

	calls := 0
	_, err := f.replenisher.Execute(ctx, func(context.Context) (string, error) {
		calls++
		return "", &ports.FeeShortfallError{Have: 2000, Need: 7000}
	})
	require.ErrorIs(t, err, application.ErrInsufficientPrimaryBalance)
	require.Equal(t, 1, calls)
	require.Zero(t, f.ledger.swaps)
	require.Empty(t, f.events)
}

func TestReplenisherSurfacesOriginalErrorWhenQuotingFails(t *testing.T) {
	// no pool record: the reverse quote cannot be computed
	ledger := newFakeLedger()
	signer := newMockSigner(randomAddress())
	swapSvc := application.NewSwapService(ledger, signer, slippageBps)
	replenisher := application.NewReplenisher(swapSvc, ledger, signer, feeBuffer, nil)

	opErr := &ports.FeeShortfallError{Have: 2000, Need: 7000}
	_, err := replenisher.Execute(ctx, func(context.Context) (string, error) {
		return "", opErr
	})
	require.Equal(t, error(opErr), err)
	require.Zero(t, ledger.swaps)
}

// TestReplenishDuringCreate drives the top-up through a real contract
// operation instead of a bare closure.
func TestReplenishDuringCreate(t *testing.T) {
	ledger := newFakeLedger().withPool(
		poolReservePrimary, poolReserveFee, poolFeeBps,
	)
	buyer := newTestParty(ledger)
	ledger.tokenBalances[buyer.identity] = 1000000
	ledger.failNextSubmits(&ports.FeeShortfallError{Have: 2000, Need: 7000})

	entry, err := buyer.svc.Create(ctx, 100, secretCode, "")
	require.NoError(t, err)
	require.Equal(t, 1, ledger.swaps)
	require.GreaterOrEqual(t, ledger.feeBalances[buyer.identity], uint64(5500))

	// the contract landed despite the initial shortfall
	state := ledger.contractState(entry.Address)
	require.Equal(t, uint64(200), state.BuyerDeposit)
}
