package main

import (
	"context"

	"github.com/urfave/cli/v2"
)

var accept = cli.Command{
	Name:  "accept",
	Usage: "accept a pending contract, depositing the principal as collateral",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "contract",
			Usage:    "contract address",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "code",
			Usage:    "secret code received from the buyer",
			Required: true,
		},
	},
	Action: acceptAction,
}

func acceptAction(ctx *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	address, err := parseAddress(ctx, "contract")
	if err != nil {
		return err
	}

	entry, err := svc.contractSvc.Accept(
		context.Background(), address, ctx.String("code"),
	)
	if err != nil {
		return err
	}

	printJSON(toContractView(entry, svc.identity))

	return nil
}
