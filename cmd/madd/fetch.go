package main

import (
	"context"

	"github.com/urfave/cli/v2"
)

var fetch = cli.Command{
	Name:  "fetch",
	Usage: "refresh one contract from the ledger, bypassing the local replica",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "contract",
			Usage:    "contract address",
			Required: true,
		},
	},
	Action: fetchAction,
}

func fetchAction(ctx *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	address, err := parseAddress(ctx, "contract")
	if err != nil {
		return err
	}

	entry, err := svc.contractSvc.FetchOne(context.Background(), address)
	if err != nil {
		return err
	}

	printJSON(toContractView(entry, svc.identity))

	return nil
}
