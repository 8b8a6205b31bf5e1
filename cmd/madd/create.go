package main

import (
	"context"

	"github.com/thanhpk/randstr"
	"github.com/urfave/cli/v2"
)

var create = cli.Command{
	Name:  "create",
	Usage: "create a new contract, depositing twice the principal",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:     "principal",
			Usage:    "principal amount in the token's smallest unit",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "code",
			Usage: "secret code to share with the seller; generated if omitted",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "local display name, never sent to the ledger",
		},
	},
	Action: createAction,
}

func createAction(ctx *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	code := ctx.String("code")
	if code == "" {
		code = randstr.String(16)
	}

	entry, err := svc.contractSvc.Create(
		context.Background(), ctx.Uint64("principal"), code, ctx.String("name"),
	)
	if err != nil {
		return err
	}

	printJSON(struct {
		contractView
		SecretCode string `json:"secret_code"`
	}{toContractView(entry, svc.identity), code})

	return nil
}
