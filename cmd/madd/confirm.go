package main

import (
	"context"

	"github.com/urfave/cli/v2"
)

var confirm = cli.Command{
	Name:  "confirm",
	Usage: "confirm your side of a locked contract",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "contract",
			Usage:    "contract address",
			Required: true,
		},
	},
	Action: confirmAction,
}

func confirmAction(ctx *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	address, err := parseAddress(ctx, "contract")
	if err != nil {
		return err
	}

	entry, err := svc.contractSvc.Confirm(context.Background(), address)
	if err != nil {
		return err
	}

	printJSON(toContractView(entry, svc.identity))

	return nil
}
