package application

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/madnet-labs/madd/internal/core/domain"
	"github.com/madnet-labs/madd/internal/core/ports"
	"github.com/madnet-labs/madd/pkg/amm"
	"github.com/madnet-labs/madd/pkg/madprogram"
)

// Quote is a priced trade of the primary token for fee currency.
// MinAmountOut is the hard floor attached to the swap instruction; the pool
// program rejects the trade if the actual output would be lower.
type Quote struct {
	AmountIn     uint64
	AmountOut    uint64
	MinAmountOut uint64
	Pool         domain.PoolSnapshot
}

// SwapService prices and executes trades against the fee-currency pool.
type SwapService interface {
	Quote(ctx context.Context, amountIn uint64) (*Quote, error)
	ReverseQuote(ctx context.Context, targetOut uint64) (*Quote, error)
	ExecuteSwap(ctx context.Context, quote *Quote) (string, error)
}

type swapService struct {
	ledgerSvc   ports.Ledger
	signerSvc   ports.Signer
	slippageBps uint32
}

// NewSwapService returns a SwapService quoting with the given slippage
// tolerance in basis points.
func NewSwapService(
	ledgerSvc ports.Ledger, signerSvc ports.Signer, slippageBps uint32,
) SwapService {
	return &swapService{
		ledgerSvc:   ledgerSvc,
		signerSvc:   signerSvc,
		slippageBps: slippageBps,
	}
}

func (s *swapService) Quote(
	ctx context.Context, amountIn uint64,
) (*Quote, error) {
	pool, err := s.fetchPool(ctx)
	if err != nil {
		return nil, err
	}

	reserveIn, reserveOut := pool.Oriented()
	amountOut, err := amm.OutGivenIn(amountIn, reserveIn, reserveOut, pool.FeeBps)
	if err != nil {
		return nil, err
	}

	return &Quote{
		AmountIn:     amountIn,
		AmountOut:    amountOut,
		MinAmountOut: amm.MinOutWithSlippage(amountOut, s.slippageBps),
		Pool:         *pool,
	}, nil
}

func (s *swapService) ReverseQuote(
	ctx context.Context, targetOut uint64,
) (*Quote, error) {
	pool, err := s.fetchPool(ctx)
	if err != nil {
		return nil, err
	}

	reserveIn, reserveOut := pool.Oriented()
	amountIn, err := amm.InGivenOut(targetOut, reserveIn, reserveOut, pool.FeeBps)
	if err != nil {
		return nil, err
	}

	// the reverse quote already carries its safety margin, the target is
	// the floor
	return &Quote{
		AmountIn:     amountIn,
		AmountOut:    targetOut,
		MinAmountOut: targetOut,
		Pool:         *pool,
	}, nil
}

func (s *swapService) ExecuteSwap(
	ctx context.Context, quote *Quote,
) (string, error) {
	trader := s.signerSvc.PublicIdentity()
	tx := madprogram.NewTransaction(
		trader, madprogram.NewSwap(trader, quote.AmountIn, quote.MinAmountOut),
	)
	if err := s.signerSvc.SignTransaction(ctx, tx); err != nil {
		return "", err
	}

	txid, err := s.ledgerSvc.SubmitTransaction(ctx, tx)
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"txid":       txid,
		"amount_in":  quote.AmountIn,
		"amount_out": quote.AmountOut,
	}).Debug("swap executed")
	return txid, nil
}

// fetchPool reads the pool record fresh on every call. Reserves move with
// every trade by any party, so snapshots must never be reused.
func (s *swapService) fetchPool(ctx context.Context) (*domain.PoolSnapshot, error) {
	buf, err := s.ledgerSvc.GetAccount(ctx, madprogram.FeePoolAddress)
	if err != nil {
		return nil, fmt.Errorf("fetching pool record: %w", err)
	}
	state, err := madprogram.DecodePool(buf)
	if err != nil {
		return nil, fmt.Errorf("decoding pool record: %w", err)
	}
	return &domain.PoolSnapshot{
		ReserveA:   state.ReserveA,
		ReserveB:   state.ReserveB,
		PrimaryIsA: state.PrimaryIsA,
		FeeBps:     state.FeeBps,
	}, nil
}
