package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

var cancel = cli.Command{
	Name:  "cancel",
	Usage: "cancel a contract no seller has accepted yet, refunding the deposit",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "contract",
			Usage:    "contract address",
			Required: true,
		},
	},
	Action: cancelAction,
}

func cancelAction(ctx *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	address, err := parseAddress(ctx, "contract")
	if err != nil {
		return err
	}

	if err := svc.contractSvc.Cancel(context.Background(), address); err != nil {
		return err
	}

	fmt.Println("contract cancelled")

	return nil
}
