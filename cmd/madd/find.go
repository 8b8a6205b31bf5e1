package main

import (
	"context"

	"github.com/urfave/cli/v2"
)

var find = cli.Command{
	Name:  "find",
	Usage: "locate a pending contract by its secret code",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "code",
			Usage:    "secret code received from the buyer",
			Required: true,
		},
	},
	Action: findAction,
}

func findAction(ctx *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	entry, err := svc.contractSvc.FindByCode(
		context.Background(), ctx.String("code"),
	)
	if err != nil {
		return err
	}

	printJSON(toContractView(entry, svc.identity))

	return nil
}
