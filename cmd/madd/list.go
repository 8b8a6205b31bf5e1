package main

import (
	"context"
	"sort"

	"github.com/urfave/cli/v2"
)

var list = cli.Command{
	Name:   "list",
	Usage:  "list all contracts you take part in, reconciled with the ledger",
	Action: listAction,
}

func listAction(ctx *cli.Context) error {
	svc, cleanup, err := getServices()
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := svc.contractSvc.ListMine(context.Background())
	if err != nil {
		return err
	}

	views := make([]contractView, 0, len(entries))
	for i := range entries {
		views = append(views, toContractView(&entries[i], svc.identity))
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].Address < views[j].Address
	})

	printJSON(views)

	return nil
}
