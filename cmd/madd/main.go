package main

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/madnet-labs/madd/internal/config"
	"github.com/madnet-labs/madd/internal/core/application"
	"github.com/madnet-labs/madd/internal/core/domain"
	"github.com/madnet-labs/madd/internal/infrastructure/ledger"
	"github.com/madnet-labs/madd/internal/infrastructure/signer"
	dbbadger "github.com/madnet-labs/madd/internal/infrastructure/storage/db/badger"
	"github.com/madnet-labs/madd/pkg/derivation"
)

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "madd CLI"
	app.Usage = "command line interface for MAD escrow contracts"
	app.Commands = append(
		app.Commands,
		&create,
		&find,
		&accept,
		&cancel,
		&confirm,
		&burn,
		&list,
		&fetch,
		&quote,
	)

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

type services struct {
	contractSvc application.ContractService
	swapSvc     application.SwapService
	identity    derivation.Address
}

func getServices() (*services, func(), error) {
	if err := config.InitConfig(); err != nil {
		return nil, nil, err
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	ledgerSvc := ledger.NewService(
		config.GetString(config.RPCURLKey), config.GetString(config.WSURLKey),
	)

	var signerSvc signer.Service
	var err error
	if key := config.GetString(config.SigningKeyKey); key != "" {
		signerSvc, err = signer.NewServiceFromKey(key)
	} else {
		signerSvc, err = signer.NewService()
		if err == nil {
			log.Warn("no signing key configured, using an ephemeral identity")
		}
	}
	if err != nil {
		return nil, nil, err
	}

	repo, err := dbbadger.NewReplicaRepositoryImpl(config.GetDbDir(), nil)
	if err != nil {
		return nil, nil, err
	}

	swapSvc := application.NewSwapService(
		ledgerSvc, signerSvc, uint32(config.GetInt(config.SlippageBpsKey)),
	)
	replenisher := application.NewReplenisher(
		swapSvc, ledgerSvc, signerSvc,
		config.GetUint64(config.FeeBufferKey),
		func(e application.ReplenishEvent) {
			log.Infof(
				"fee balance replenished: bought %d fee units for %d (tx %s)",
				e.AmountOut, e.AmountIn, e.TxID,
			)
		},
	)
	contractSvc := application.NewContractService(
		repo, ledgerSvc, signerSvc, replenisher,
	)

	cleanup := func() {
		if closer, ok := repo.(interface{ Close() }); ok {
			closer.Close()
		}
	}
	return &services{
		contractSvc: contractSvc,
		swapSvc:     swapSvc,
		identity:    signerSvc.PublicIdentity(),
	}, cleanup, nil
}

type contractView struct {
	Address       string `json:"address"`
	Status        string `json:"status"`
	Role          string `json:"role,omitempty"`
	Principal     uint64 `json:"principal"`
	BuyerDeposit  uint64 `json:"buyer_deposit"`
	SellerDeposit uint64 `json:"seller_deposit"`
	DisplayName   string `json:"display_name,omitempty"`
	Terminal      bool   `json:"terminal"`
}

func toContractView(
	entry *domain.CachedContract, identity derivation.Address,
) contractView {
	var role string
	switch entry.RoleOf(identity) {
	case domain.RoleBuyer:
		role = "buyer"
	case domain.RoleSeller:
		role = "seller"
	}
	return contractView{
		Address:       entry.Address.String(),
		Status:        entry.Status.String(),
		Role:          role,
		Principal:     entry.Principal,
		BuyerDeposit:  entry.BuyerDeposit,
		SellerDeposit: entry.SellerDeposit,
		DisplayName:   entry.DisplayName,
		Terminal:      entry.Terminal,
	}
}

func parseAddress(ctx *cli.Context, flag string) (derivation.Address, error) {
	address, err := derivation.NewAddressFromString(ctx.String(flag))
	if err != nil {
		return derivation.Address{}, fmt.Errorf("invalid %s: %s", flag, err)
	}
	return address, nil
}

func printJSON(v interface{}) {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(buf))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[madd] %v\n", err)
	os.Exit(1)
}
