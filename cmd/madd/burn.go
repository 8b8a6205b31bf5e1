package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

var burn = cli.Command{
	Name:  "burn",
	Usage: "destroy both deposits of a locked contract, irreversibly",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "contract",
			Usage:    "contract address",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "code",
			Usage:    "the contract's secret code, required as confirmation",
			Required: true,
		},
	},
	Action: burnAction,
}

func burnAction(ctx *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	address, err := parseAddress(ctx, "contract")
	if err != nil {
		return err
	}

	if err := svc.contractSvc.Burn(
		context.Background(), address, ctx.String("code"),
	); err != nil {
		return err
	}

	fmt.Println("contract burned, both deposits destroyed")

	return nil
}
