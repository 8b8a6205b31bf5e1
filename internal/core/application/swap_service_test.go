package application_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/madnet-labs/madd/internal/core/application"
	"github.com/madnet-labs/madd/internal/core/domain"
	"github.com/madnet-labs/madd/pkg/amm"
)

const (
	poolReservePrimary = 10000000
	poolReserveFee     = 5000000
	poolFeeBps         = 25
)

func newSwapFixture() (application.SwapService, *fakeLedger, *mockSigner) {
	ledger := newFakeLedger().withPool(poolReservePrimary, poolReserveFee, poolFeeBps)
	signer := newMockSigner(randomAddress())
	return application.NewSwapService(ledger, signer, slippageBps), ledger, signer
}

func TestQuote(t *testing.T) {
	svc, _, _ := newSwapFixture()

	quote, err := svc.Quote(ctx, 100000)
	require.NoError(t, err)
	require.Equal(t, uint64(100000), quote.AmountIn)
	require.Equal(t, uint64(49382), quote.AmountOut)
	require.Equal(t, uint64(49136), quote.MinAmountOut)
	require.Equal(t, uint64(poolReservePrimary), quote.Pool.ReserveA)
	require.Equal(t, uint64(poolReserveFee), quote.Pool.ReserveB)
}

func TestQuoteErrors(t *testing.T) {
	svc, _, _ := newSwapFixture()

	_, err := svc.Quote(ctx, 0)
	require.EqualError(t, err, amm.ErrAmountTooLow.Error())

	noPool := application.NewSwapService(
		newFakeLedger(), newMockSigner(randomAddress()), slippageBps,
	)
	_, err = noPool.Quote(ctx, 100000)
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestReverseQuote(t *testing.T) {
	svc, _, _ := newSwapFixture()

	quote, err := svc.ReverseQuote(ctx, 7500)
	require.NoError(t, err)
	require.Equal(t, uint64(15099), quote.AmountIn)
	require.Equal(t, uint64(7500), quote.AmountOut)
	// the target itself is the hard floor of a reverse quote
	require.Equal(t, uint64(7500), quote.MinAmountOut)

	// the quoted input nets at least the target through the forward formula
	out, err := amm.OutGivenIn(
		quote.AmountIn, poolReservePrimary, poolReserveFee, poolFeeBps,
	)
	require.NoError(t, err)
	require.GreaterOrEqual(t, out, quote.MinAmountOut)
}

func TestExecuteSwap(t *testing.T) {
	svc, ledger, signer := newSwapFixture()
	ledger.tokenBalances[signer.identity] = 1000000

	quote, err := svc.Quote(ctx, 100000)
	require.NoError(t, err)

	txid, err := svc.ExecuteSwap(ctx, quote)
	require.NoError(t, err)
	require.NotEmpty(t, txid)

	require.Equal(t, uint64(1000000-100000), ledger.tokenBalances[signer.identity])
	require.Equal(t, quote.AmountOut, ledger.feeBalances[signer.identity])

	// reserves moved, so the next quote for the same input is worse
	requote, err := svc.Quote(ctx, 100000)
	require.NoError(t, err)
	require.Less(t, requote.AmountOut, quote.AmountOut)
}

func TestExecuteSwapWithLockedSigner(t *testing.T) {
	svc, ledger, signer := newSwapFixture()
	ledger.tokenBalances[signer.identity] = 1000000

	quote, err := svc.Quote(ctx, 100000)
	require.NoError(t, err)

	signer.locked = true
	_, err = svc.ExecuteSwap(ctx, quote)
	require.EqualError(t, err, domain.ErrSignerLocked.Error())
}
