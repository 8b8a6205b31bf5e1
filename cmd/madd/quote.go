package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/madnet-labs/madd/internal/core/application"
	"github.com/madnet-labs/madd/pkg/amm"
)

var quote = cli.Command{
	Name:  "quote",
	Usage: "price a swap of primary tokens for fee currency against the pool",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:  "amount",
			Usage: "primary-token input amount in its smallest unit",
		},
		&cli.Uint64Flag{
			Name:  "target",
			Usage: "fee-currency output to target instead of a fixed input",
		},
		&cli.BoolFlag{
			Name:  "execute",
			Usage: "execute the quoted swap instead of only printing it",
		},
	},
	Action: quoteAction,
}

func quoteAction(ctx *cli.Context) error {
	amount, target := ctx.Uint64("amount"), ctx.Uint64("target")
	if (amount == 0) == (target == 0) {
		return fmt.Errorf("exactly one of --amount and --target must be set")
	}

	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	var q *application.Quote
	if amount > 0 {
		q, err = svc.swapSvc.Quote(context.Background(), amount)
	} else {
		q, err = svc.swapSvc.ReverseQuote(context.Background(), target)
	}
	if err != nil {
		return err
	}

	reserveIn, reserveOut := q.Pool.Oriented()
	spot, err := amm.SpotPrice(reserveIn, reserveOut)
	if err != nil {
		return err
	}

	view := struct {
		AmountIn     uint64 `json:"amount_in"`
		AmountOut    uint64 `json:"amount_out"`
		MinAmountOut uint64 `json:"min_amount_out"`
		SpotPrice    string `json:"spot_price"`
		TxID         string `json:"txid,omitempty"`
	}{
		AmountIn:     q.AmountIn,
		AmountOut:    q.AmountOut,
		MinAmountOut: q.MinAmountOut,
		SpotPrice:    spot.String(),
	}

	if ctx.Bool("execute") {
		txid, err := svc.swapSvc.ExecuteSwap(context.Background(), q)
		if err != nil {
			return err
		}
		view.TxID = txid
	}

	printJSON(view)

	return nil
}
