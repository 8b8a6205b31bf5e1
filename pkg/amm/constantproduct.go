// Package amm implements constant-product quote math for the fee-currency
// pool. All core arithmetic is carried out on big integers in the token's
// smallest unit; conversion to decimal happens only at the presentation
// boundary.
package amm

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// BpsDivisor is the denominator for all basis-point rates.
	BpsDivisor = 10000
	// ReverseQuoteMarginBps is the safety margin added on top of the
	// theoretical minimum input of a reverse quote, absorbing price movement
	// between quoting and execution.
	ReverseQuoteMarginBps = 25
)

var (
	// ErrAmountTooLow ...
	ErrAmountTooLow = errors.New("provided amount is too low")
	// ErrAmountTooBig ...
	ErrAmountTooBig = errors.New("provided amount exceeds pool reserves")
	// ErrEmptyReserves ...
	ErrEmptyReserves = errors.New("pool reserves must not be empty")
	// ErrInvalidFee ...
	ErrInvalidFee = errors.New("fee must be lower than 10000 basis points")
)

var bpsDivisor = big.NewInt(BpsDivisor)

// OutGivenIn returns the output amount the pool yields for the given input,
// with the percentage fee charged on the way in. The result is floored like
// the on-ledger program does.
func OutGivenIn(amountIn, reserveIn, reserveOut uint64, feeBps uint32) (uint64, error) {
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrEmptyReserves
	}
	if feeBps >= BpsDivisor {
		return 0, ErrInvalidFee
	}

	in := new(big.Int).SetUint64(amountIn)
	fee := new(big.Int).Mul(in, big.NewInt(int64(feeBps)))
	fee.Div(fee, bpsDivisor)
	inAfterFee := new(big.Int).Sub(in, fee)
	if inAfterFee.Sign() <= 0 {
		return 0, ErrAmountTooLow
	}

	rIn := new(big.Int).SetUint64(reserveIn)
	rOut := new(big.Int).SetUint64(reserveOut)

	// floor(reserveOut * inAfterFee / (reserveIn + inAfterFee))
	num := new(big.Int).Mul(rOut, inAfterFee)
	den := new(big.Int).Add(rIn, inAfterFee)
	out := num.Div(num, den)

	if out.Sign() <= 0 {
		return 0, ErrAmountTooLow
	}
	if out.Cmp(rOut) >= 0 {
		return 0, ErrAmountTooBig
	}
	return out.Uint64(), nil
}

// InGivenOut returns the input amount needed for the pool to yield at least
// targetOut, inverting the forward formula, compensating the percentage fee
// and adding the ReverseQuoteMarginBps safety margin. The returned input,
// fed back into OutGivenIn with the same reserves, never nets less than
// targetOut.
func InGivenOut(targetOut, reserveIn, reserveOut uint64, feeBps uint32) (uint64, error) {
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrEmptyReserves
	}
	if feeBps >= BpsDivisor {
		return 0, ErrInvalidFee
	}
	if targetOut == 0 {
		return 0, ErrAmountTooLow
	}
	if targetOut >= reserveOut {
		return 0, ErrAmountTooBig
	}

	rIn := new(big.Int).SetUint64(reserveIn)
	rOut := new(big.Int).SetUint64(reserveOut)
	out := new(big.Int).SetUint64(targetOut)

	// ceil(reserveIn * targetOut / (reserveOut - targetOut))
	num := new(big.Int).Mul(rIn, out)
	den := new(big.Int).Sub(rOut, out)
	inAfterFee := ceilDiv(num, den)

	// undo the fee charged on the way in:
	// ceil(inAfterFee * 10000 / (10000 - feeBps))
	in := ceilDiv(
		new(big.Int).Mul(inAfterFee, bpsDivisor),
		big.NewInt(int64(BpsDivisor-feeBps)),
	)

	// safety margin over the theoretical minimum
	margin := ceilDiv(
		new(big.Int).Mul(in, big.NewInt(ReverseQuoteMarginBps)),
		bpsDivisor,
	)
	in.Add(in, margin)

	return in.Uint64(), nil
}

// MinOutWithSlippage returns the hard floor to attach to a swap instruction:
// the quoted output reduced by the given slippage tolerance.
func MinOutWithSlippage(amountOut uint64, slippageBps uint32) uint64 {
	out := new(big.Int).SetUint64(amountOut)
	cut := new(big.Int).Mul(out, big.NewInt(int64(slippageBps)))
	cut.Div(cut, bpsDivisor)
	return new(big.Int).Sub(out, cut).Uint64()
}

// SpotPrice returns reserveOut/reserveIn as a decimal, for display only.
func SpotPrice(reserveIn, reserveOut uint64) (decimal.Decimal, error) {
	if reserveIn == 0 || reserveOut == 0 {
		return decimal.Zero, ErrEmptyReserves
	}
	rIn := decimal.NewFromBigInt(new(big.Int).SetUint64(reserveIn), 0)
	rOut := decimal.NewFromBigInt(new(big.Int).SetUint64(reserveOut), 0)
	return rOut.Div(rIn).Truncate(8), nil
}

// FormatAmount renders a smallest-unit amount as a decimal string with the
// given precision. Presentation boundary only.
func FormatAmount(amount uint64, precision int32) string {
	return decimal.NewFromBigInt(
		new(big.Int).SetUint64(amount), -precision,
	).String()
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
