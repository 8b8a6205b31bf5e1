package application

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/madnet-labs/madd/internal/core/ports"
)

// ReplenishEvent notifies the UI that an automatic top-up swap happened.
// It is informational only and not part of the correctness contract.
type ReplenishEvent struct {
	Id        string
	Deficit   uint64
	AmountIn  uint64
	AmountOut uint64
	TxID      string
}

// Replenisher wraps ledger-mutating operations: when one fails on a
// recognized fee-currency shortfall it buys the missing amount through the
// pool and retries the operation exactly once. It never swaps more than once
// per call and never loops.
type Replenisher struct {
	swapSvc     SwapService
	ledgerSvc   ports.Ledger
	signerSvc   ports.Signer
	feeBuffer   uint64
	onReplenish func(ReplenishEvent)
}

// NewReplenisher returns a Replenisher adding feeBuffer smallest units of
// fee currency on top of every detected deficit. onReplenish may be nil.
func NewReplenisher(
	swapSvc SwapService, ledgerSvc ports.Ledger, signerSvc ports.Signer,
	feeBuffer uint64, onReplenish func(ReplenishEvent),
) *Replenisher {
	return &Replenisher{
		swapSvc:     swapSvc,
		ledgerSvc:   ledgerSvc,
		signerSvc:   signerSvc,
		feeBuffer:   feeBuffer,
		onReplenish: onReplenish,
	}
}

// Execute runs op, classifies a failure as a fee shortfall if possible,
// tops up and retries once. Any failure of the retried operation is
// surfaced unmodified.
func (r *Replenisher) Execute(
	ctx context.Context, op func(ctx context.Context) (string, error),
) (string, error) {
	res, err := op(ctx)
	if err == nil {
		return res, nil
	}

	shortfall, ok := ClassifyFeeShortfall(err)
	if !ok {
		return "", err
	}

	target := shortfall.Deficit() + r.feeBuffer
	quote, qerr := r.swapSvc.ReverseQuote(ctx, target)
	if qerr != nil {
		log.WithError(qerr).Warn("fee shortfall detected but quoting failed")
		return "", err
	}

	balance, berr := r.ledgerSvc.GetTokenBalance(
		ctx, r.signerSvc.PublicIdentity(),
	)
	if berr != nil {
		log.WithError(berr).Warn("fee shortfall detected but balance check failed")
		return "", err
	}
	if balance < quote.AmountIn {
		return "", ErrInsufficientPrimaryBalance
	}

	txid, serr := r.swapSvc.ExecuteSwap(ctx, quote)
	if serr != nil {
		return "", serr
	}
	replenishSwaps.Inc()

	if r.onReplenish != nil {
		r.onReplenish(ReplenishEvent{
			Id:        uuid.New().String(),
			Deficit:   shortfall.Deficit(),
			AmountIn:  quote.AmountIn,
			AmountOut: quote.AmountOut,
			TxID:      txid,
		})
	}

	return op(ctx)
}

var (
	exactShortfallPattern = regexp.MustCompile(
		`insufficient fee funds: have (\d+), need (\d+)`,
	)
	numericTokenPattern = regexp.MustCompile(`\d{3,}`)
)

// knownShortfallCode is the escrow program's custom error code for a fee
// shortfall as it appears in raw transaction logs.
const knownShortfallCode = "custom program error: 0x1"

// ClassifyFeeShortfall inspects an error's available text surfaces for a
// fee-currency shortfall signature. A typed ports.FeeShortfallError wins;
// the text patterns are fallbacks of decreasing specificity and a known
// source of false negatives when upstream messages change.
func ClassifyFeeShortfall(err error) (*ports.FeeShortfallError, bool) {
	var typed *ports.FeeShortfallError
	if errors.As(err, &typed) {
		return typed, true
	}

	text := err.Error()
	if m := exactShortfallPattern.FindStringSubmatch(text); m != nil {
		have, herr := strconv.ParseUint(m[1], 10, 64)
		need, nerr := strconv.ParseUint(m[2], 10, 64)
		if herr == nil && nerr == nil && need > have {
			return &ports.FeeShortfallError{Have: have, Need: need}, true
		}
	}

	if !strings.Contains(strings.ToLower(text), "insufficient") &&
		!strings.Contains(text, knownShortfallCode) {
		return nil, false
	}

	// last resort: the first two large numeric tokens are read as
	// (have, need)
	tokens := numericTokenPattern.FindAllString(text, 2)
	if len(tokens) < 2 {
		return nil, false
	}
	have, herr := strconv.ParseUint(tokens[0], 10, 64)
	need, nerr := strconv.ParseUint(tokens[1], 10, 64)
	if herr != nil || nerr != nil || need <= have {
		return nil, false
	}
	return &ports.FeeShortfallError{Have: have, Need: need}, true
}
